package main

import (
	"log"
	"os"

	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/routes"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/services"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/storage"
	"github.com/DkshLuvsDucks/FCS-Project-Fixed-sub000/utils"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	storage.InitializeDB()
	storage.InitializeRedis()
	if err := services.InitializeCodec(); err != nil {
		log.Fatalf("failed to initialize message codec: %v", err)
	}

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	conversations := app.Party("/api/conversations", accessTokenVerifierMiddleware)
	{
		conversations.Post("/messages", routes.CreateConversationMessage)
		conversations.Post("/messages/read", routes.MarkMessagesRead)
		conversations.Get("/unread", routes.ListConversationUnread)
		conversations.Get("/{otherUserID:uint}/messages", routes.ListConversationMessages)
	}

	messages := app.Party("/api/messages", accessTokenVerifierMiddleware)
	{
		messages.Patch("/{id:uint}", routes.EditMessage)
		messages.Delete("/{id:uint}", routes.DeleteMessage)
	}

	groups := app.Party("/api/groups", accessTokenVerifierMiddleware)
	{
		groups.Post("/", routes.CreateGroup)
		groups.Get("/", routes.ListMyGroups)
		groups.Patch("/{groupID:uint}", routes.UpdateGroupMeta)
		groups.Post("/{groupID:uint}/end", routes.EndGroup)
		groups.Get("/{groupID:uint}/members", routes.GetGroupMembers)
		groups.Post("/{groupID:uint}/members", routes.AddGroupMember)
		groups.Delete("/{groupID:uint}/members/{userID:uint}", routes.RemoveGroupMember)
		groups.Patch("/{groupID:uint}/members/{userID:uint}/admin", routes.SetGroupAdmin)
		groups.Get("/{groupID:uint}/messages", routes.ListGroupMessages)
		groups.Post("/{groupID:uint}/messages", routes.SendGroupMessage)
		groups.Patch("/{groupID:uint}/messages/{messageID:uint}", routes.EditGroupMessage)
		groups.Delete("/{groupID:uint}/messages/{messageID:uint}", routes.DeleteGroupMessage)
		groups.Post("/{groupID:uint}/read", routes.MarkGroupRead)
		groups.Get("/{groupID:uint}/unread", routes.GetGroupUnread)
		groups.Post("/{groupID:uint}/typing", routes.Typing)
		groups.Get("/{groupID:uint}/typing", routes.ListTyping)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := ":" + port

	if err := app.Listen(addr); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}

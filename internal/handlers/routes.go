package handlers

import "github.com/gin-gonic/gin"

// RegisterRoutes wires the REST gateway behind auth.
func RegisterRoutes(router gin.IRoutes, auth gin.HandlerFunc, chats *ChatHandler, messages *MessageHandler) {
	router.POST("/chats", auth, chats.CreateChat)
	router.POST("/chats/group", auth, chats.CreateGroup)
	router.POST("/chats/group/remove", auth, chats.RemoveUser)
	router.GET("/chats", auth, chats.ListChats)
	router.GET("/chats/:chat_id", auth, chats.GetChat)
	router.GET("/chats/:chat_id/messages", auth, chats.GetChatMessages)
	router.POST("/chats/:chat_id/read", auth, chats.MarkChatRead)
	router.DELETE("/chats/:chat_id", auth, chats.DeleteChat)

	router.POST("/messages", auth, messages.SendMessage)
	router.DELETE("/messages", auth, messages.DeleteMessages)
	router.POST("/messages/media", auth, messages.UploadMedia)
	router.POST("/messages/:message_id/read", auth, messages.MarkRead)
	router.POST("/messages/:message_id/delivered", auth, messages.MarkDelivered)
}

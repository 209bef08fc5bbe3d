package main

import (
	"context"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chat-llm/internal/config"
	"chat-llm/internal/repository"
	"chat-llm/internal/service"
)

// backfill asigna los mensajes legacy sin conversacion a conversaciones "Migrated Conversation".
// Se puede correr varias veces: sin huerfanos no hace cambios.
func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer store.Close()

	res, err := service.NewBackfillService(logger, store.Conversations, store.Messages).Run(ctx)
	if err != nil {
		logger.Fatal("backfill failed", zap.Error(err))
	}

	fmt.Printf("conversations created: %d\nconversations reused: %d\nmessages adopted: %d\n",
		res.ConversationsCreated, res.ConversationsReused, res.MessagesAdopted)
}

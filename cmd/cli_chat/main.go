package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"chat-llm/internal/config"
	"chat-llm/internal/domain"
	"chat-llm/internal/llm"
	"chat-llm/internal/repository"
	"chat-llm/internal/service"
)

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewNop()
	if os.Getenv("CLI_DEBUG") != "" {
		logger = zap.NewExample()
	}
	defer logger.Sync()

	store, err := repository.Open(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, logger,
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithTimeout(cfg.LLMTimeout),
	)
	chatSvc := service.NewChatService(logger, store.Conversations, store.Messages, llmClient, nil, nil)

	for {
		fmt.Println("\n===== Conversaciones =====")
		convs, err := chatSvc.ListConversations(ctx, 20)
		if err != nil {
			log.Fatalf("listar conversaciones: %v", err)
		}
		for i, c := range convs {
			fmt.Printf("[%d] %s (actualizada %s)\n", i+1, c.Title, c.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Println("[N] Nueva conversacion")
		fmt.Println("[D] Eliminar conversacion")
		fmt.Println("[Q] Salir")
		fmt.Print("Selecciona una opcion: ")

		choice, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		choice = strings.TrimSpace(choice)

		switch {
		case strings.EqualFold(choice, "Q"):
			return
		case strings.EqualFold(choice, "N"):
			if err := chatFlow(ctx, reader, chatSvc, ""); err != nil {
				fmt.Printf("Error en chat: %v\n", err)
			}
		case strings.EqualFold(choice, "D"):
			conv, ok := pickConversation(reader, convs, "Numero a eliminar: ")
			if !ok {
				continue
			}
			if err := chatSvc.DeleteConversation(ctx, conv.ID); err != nil {
				fmt.Printf("Error eliminando: %v\n", err)
				continue
			}
			fmt.Printf("Conversacion %q eliminada.\n", conv.Title)
		default:
			idx, err := strconv.Atoi(choice)
			if err != nil || idx < 1 || idx > len(convs) {
				fmt.Println("Seleccion invalida.")
				continue
			}
			conv := convs[idx-1]
			if err := printHistory(ctx, chatSvc, conv); err != nil {
				fmt.Printf("Error cargando historial: %v\n", err)
				continue
			}
			if err := chatFlow(ctx, reader, chatSvc, conv.ID); err != nil {
				fmt.Printf("Error en chat: %v\n", err)
			}
		}
	}
}

func pickConversation(reader *bufio.Reader, convs []domain.Conversation, prompt string) (domain.Conversation, bool) {
	fmt.Print(prompt)
	line, _ := reader.ReadString('\n')
	idx, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || idx < 1 || idx > len(convs) {
		fmt.Println("Seleccion invalida.")
		return domain.Conversation{}, false
	}
	return convs[idx-1], true
}

func printHistory(ctx context.Context, chatSvc *service.ChatService, conv domain.Conversation) error {
	msgs, err := chatSvc.History(ctx, conv.ID)
	if err != nil {
		return err
	}
	fmt.Printf("\n--- %s ---\n", conv.Title)
	for _, m := range msgs {
		fmt.Printf("%s > %s\n", speaker(m.Role), m.Content)
	}
	return nil
}

func chatFlow(ctx context.Context, reader *bufio.Reader, chatSvc *service.ChatService, conversationID string) error {
	fmt.Println("---- Modo Chat (escribe 'salir' para terminar chat) ----")
	for {
		fmt.Print("Tu > ")
		text, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("leer input: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if strings.EqualFold(text, "salir") || strings.EqualFold(text, "exit") {
			fmt.Println("Saliendo del chat...")
			return nil
		}

		res, err := chatSvc.SendMessage(ctx, service.SendMessageInput{
			Message:        text,
			ConversationID: conversationID,
		})
		if res.Conversation.ID != "" {
			conversationID = res.Conversation.ID
		}
		if errors.Is(err, service.ErrCompletionFailed) {
			fmt.Printf("No se pudo generar respuesta: %v\n", err)
			continue
		}
		if err != nil {
			return err
		}
		fmt.Printf("%s > %s\n", speaker(domain.RoleAssistant), res.Reply())
	}
}

func speaker(role domain.Role) string {
	if role == domain.RoleUser {
		return "Tu"
	}
	return "IA"
}

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"parley/internal/client/paging"
	"parley/internal/client/rest"
	"parley/internal/client/socket"
	"parley/internal/client/store"
	"parley/internal/domain/entity"
)

// terminalViewport satisfies paging.Viewport for a scrollback that is always
// anchored at the bottom.
type terminalViewport struct{}

func (terminalViewport) PreserveDistanceFromBottom(merge func()) { merge() }
func (terminalViewport) NearBottom() bool                        { return true }
func (terminalViewport) CenterOn(messageID string)               { fmt.Printf("\r-- jumped to %s --\n> ", messageID) }

func dial(addr, token string) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), http.Header{})
	return conn, err
}

func main() {
	serverAddr := flag.String("addr", "localhost:8080", "server address")
	token := flag.String("token", "", "firebase id token")
	userID := flag.String("user", "", "user id (must match the token)")
	chatID := flag.String("chat", "", "chat id to join on startup")
	flag.Parse()

	if *token == "" || *userID == "" {
		log.Fatal("both -token and -user are required")
	}

	ctx := context.Background()
	api := rest.NewClient("http://"+*serverAddr, *token)
	st := store.New()
	pager := paging.NewController(st, api, terminalViewport{}, 20)

	conn, err := dial(*serverAddr, *token)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	router := socket.NewRouter(st, conn, *userID)
	router.OnNewMessage = func(m *entity.Message) {
		fmt.Printf("\r%s: %s\n> ", m.SenderID, m.Content)
		if err := api.MarkDelivered(ctx, m.ID); err != nil {
			log.Println("delivered receipt:", err)
		}
	}
	router.Join()

	if *chatID != "" {
		router.JoinChat(*chatID)
		if err := pager.LoadInitial(ctx, *chatID); err != nil {
			log.Println("initial load:", err)
		}
		for _, message := range st.Messages(*chatID) {
			fmt.Printf("%s: %s\n", message.SenderID, message.Content)
		}
	}

	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				log.Println("read:", err)
				return
			}
			router.Handle(raw)
		}
	}()

	// Keep the server-side presence entry alive well inside its TTL.
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()
	go func() {
		for range heartbeat.C {
			router.Heartbeat()
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		fmt.Print("> ")
		for scanner.Scan() {
			text := strings.TrimSpace(scanner.Text())
			if text == "" {
				fmt.Print("> ")
				continue
			}
			if text == "/quit" {
				close(interrupt)
				return
			}
			handleInput(ctx, text, *chatID, api, router, pager, st)
			fmt.Print("> ")
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-interrupt:
			err := conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil {
				log.Println("write close:", err)
				return
			}
			select {
			case <-done:
			case <-time.After(time.Second):
			}
			return
		}
	}
}

func handleInput(ctx context.Context, text, chatID string, api *rest.Client, router *socket.Router, pager *paging.Controller, st *store.Store) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "/older":
		if _, err := pager.LoadOlder(ctx, chatID); err != nil {
			log.Println("older:", err)
		}
	case "/jump":
		if len(fields) < 2 {
			log.Println("usage: /jump <message-id>")
			return
		}
		if _, err := pager.JumpToMessage(ctx, chatID, fields[1]); err != nil {
			log.Println("jump:", err)
			return
		}
		pager.SettleJump(chatID)
	case "/edit":
		if len(fields) < 3 {
			log.Println("usage: /edit <message-id> <content>")
			return
		}
		message, err := api.EditMessage(ctx, fields[1], strings.Join(fields[2:], " "))
		if err != nil {
			log.Println("edit:", err)
			return
		}
		st.Apply(message)
	case "/delete":
		if len(fields) < 2 {
			log.Println("usage: /delete <message-id>")
			return
		}
		message, err := api.DeleteMessage(ctx, fields[1])
		if err != nil {
			log.Println("delete:", err)
			return
		}
		st.Apply(message)
	case "/react":
		if len(fields) < 3 {
			log.Println("usage: /react <message-id> <emoji>")
			return
		}
		message, err := api.ToggleReaction(ctx, fields[1], fields[2])
		if err != nil {
			log.Println("react:", err)
			return
		}
		st.Apply(message)
	case "/read":
		// Optimistic local reset, reconciled by the server's unread_update echo.
		st.ResetUnread(chatID)
		if err := api.MarkRead(ctx, chatID); err != nil {
			log.Println("read:", err)
		}
	case "/seen":
		if err := api.MarkSeen(ctx, chatID); err != nil {
			log.Println("seen:", err)
		}
	case "/unread":
		counts, err := api.UnreadCounts(ctx)
		if err != nil {
			log.Println("unread:", err)
			return
		}
		for chat, count := range counts {
			fmt.Printf("%s: %d\n", chat, count)
		}
	default:
		router.Typing(chatID)
		message, err := api.SendMessage(ctx, chatID, text, "")
		if err != nil {
			log.Println("send:", err)
			return
		}
		router.StopTyping(chatID)
		st.Upsert(message)
	}
}

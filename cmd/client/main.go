package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pliu/quickchat/internal/models"
	"github.com/pliu/quickchat/internal/session"
	"github.com/spf13/cobra"
)

var (
	serverURL string
	userEmail string
	password  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "quickchat-client",
		Short: "Terminal client for the QuickChat server",
		Run:   runClient,
	}

	rootCmd.Flags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "server base URL")
	rootCmd.Flags().StringVarP(&userEmail, "email", "e", "", "account email (required)")
	rootCmd.Flags().StringVarP(&password, "password", "p", "", "account password (required)")
	rootCmd.MarkFlagRequired("email")
	rootCmd.MarkFlagRequired("password")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	sess := session.New(serverURL)

	if err := sess.Login(ctx, userEmail, password); err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	fmt.Printf("Logged in as %s\n", sess.User().FullName)

	sess.OnMessage = func(msg models.Message) {
		fmt.Printf("\r[%s] from %d: %s\n> ", msg.CreatedAt.Format("15:04:05"), msg.SenderID, msg.Text)
	}
	sess.OnPresence = func(ids []int64) {
		fmt.Printf("\rOnline now: %v\n> ", ids)
	}

	if err := sess.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	go func() {
		if err := sess.Run(); err != nil {
			log.Fatalf("Connection closed: %v", err)
		}
	}()

	printPartners(ctx, sess)
	handleStdin(ctx, sess)
}

func printPartners(ctx context.Context, sess *session.Session) {
	users, unseen, err := sess.Partners(ctx)
	if err != nil {
		fmt.Printf("Failed to load users: %v\n", err)
		return
	}
	fmt.Println("Users:")
	for _, u := range users {
		badge := ""
		if n := unseen[u.ID]; n > 0 {
			badge = fmt.Sprintf(" (%d unseen)", n)
		}
		fmt.Printf("  %d  %s%s\n", u.ID, u.FullName, badge)
	}
}

func handleStdin(ctx context.Context, sess *session.Session) {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("Commands: /users, /select <id>, /quit; anything else is sent as a message.")
	fmt.Print("> ")

	for {
		input, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		input = strings.TrimSpace(input)

		switch {
		case input == "":
		case input == "/quit":
			sess.Close()
			return
		case input == "/users":
			printPartners(ctx, sess)
		case strings.HasPrefix(input, "/select "):
			id, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(input, "/select ")), 10, 64)
			if err != nil {
				fmt.Println("Usage: /select <user id>")
				break
			}
			if err := sess.Select(ctx, id); err != nil {
				fmt.Printf("Failed to open conversation: %v\n", err)
				break
			}
			for _, m := range sess.Messages() {
				fmt.Printf("  [%s] %d: %s\n", m.CreatedAt.Format("15:04:05"), m.SenderID, m.Text)
			}
		default:
			if _, err := sess.Send(ctx, input, ""); err != nil {
				fmt.Printf("Send failed: %v\n", err)
			}
		}
		fmt.Print("> ")
	}
}

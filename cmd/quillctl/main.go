// quillctl — консольный клиент платформы: вход, профиль, отправка статей
// на модерацию и сама модерация.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"codequill/internal/logger"
	"codequill/internal/models"
	"codequill/internal/session"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var serverURL string

var rootCmd = &cobra.Command{
	Use:   "quillctl",
	Short: "Клиент платформы CodeQuill",
}

func newManager() (*session.Manager, *session.Client, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, nil, err
	}
	client := session.NewClient(serverURL, filepath.Join(home, ".codequill", "session.json"))
	return session.NewManager(client), client, nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Вход по email и паролю",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := newManager()
		if err != nil {
			return err
		}
		defer mgr.Close()
		mgr.Initialize(cmd.Context())

		password, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}
		if err := mgr.SignIn(cmd.Context(), args[0], password); err != nil {
			return err
		}
		fmt.Println("Вход выполнен")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выход и отзыв сессии",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, _, err := newManager()
		if err != nil {
			return err
		}
		defer mgr.Close()
		mgr.Initialize(cmd.Context())
		mgr.SignOut(cmd.Context())
		fmt.Println("Сессия завершена")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Текущий пользователь",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, client, err := newManager()
		if err != nil {
			return err
		}
		defer mgr.Close()
		mgr.Initialize(cmd.Context())

		snap := mgr.Snapshot()
		if snap.State != session.StateAuthenticated {
			fmt.Println("Не аутентифицирован")
			return nil
		}
		// Initialize подтягивает профиль асинхронно; для CLI дождёмся
		// синхронного ответа.
		profile := snap.Profile
		if profile == nil {
			profile, err = client.FetchProfile(cmd.Context())
			if err != nil {
				return err
			}
		}
		fmt.Printf("%s <%s> (%s)\n", profile.Name, profile.Email, profile.Role)
		return nil
	},
}

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Список статей (по умолчанию опубликованные)",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, client, err := newManager()
		if err != nil {
			return err
		}
		client.Restore(cmd.Context())

		articles, err := client.ListArticles(cmd.Context(), listStatus, 20, 0)
		if err != nil {
			return err
		}
		for _, a := range articles {
			fmt.Printf("%6d  %-10s  %s\n", a.ID, a.Status, a.Title)
		}
		return nil
	},
}

var submitCmd = &cobra.Command{
	Use:   "submit <id>",
	Short: "Отправить черновик на модерацию",
	Args:  cobra.ExactArgs(1),
	RunE:  articleActionRun(func(c *session.Client, cmd *cobra.Command, id int64) error { return c.SubmitArticle(cmd.Context(), id) }),
}

var approveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Опубликовать статью (только админ)",
	Args:  cobra.ExactArgs(1),
	RunE:  articleActionRun(func(c *session.Client, cmd *cobra.Command, id int64) error { return c.ApproveArticle(cmd.Context(), id) }),
}

var rejectReason string

var rejectCmd = &cobra.Command{
	Use:   "reject <id>",
	Short: "Отклонить статью (только админ)",
	Args:  cobra.ExactArgs(1),
	RunE:  articleActionRun(func(c *session.Client, cmd *cobra.Command, id int64) error { return c.RejectArticle(cmd.Context(), id, rejectReason) }),
}

func articleActionRun(action func(*session.Client, *cobra.Command, int64) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("некорректный id статьи: %q", args[0])
		}

		_, client, err := newManager()
		if err != nil {
			return err
		}
		if _, ok, _ := client.Restore(cmd.Context()); !ok {
			return models.ErrNotAuthenticated
		}
		if err := action(client, cmd, id); err != nil {
			return err
		}
		fmt.Println("Готово")
		return nil
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("CODEQUILL_SERVER", "http://localhost:8080"), "адрес сервера")
	listCmd.Flags().StringVar(&listStatus, "status", "", "фильтр по статусу (submitted|published|rejected, кроме published нужен админ)")
	rejectCmd.Flags().StringVar(&rejectReason, "reason", "", "причина отклонения")
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd, listCmd, submitCmd, approveCmd, rejectCmd)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func main() {
	logger.InitLogger()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}

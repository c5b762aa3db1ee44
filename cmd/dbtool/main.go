package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/rank-math-api/internal/config"
	"github.com/jacksonlee411/rank-math-api/internal/server"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/domain/types"
	"github.com/jacksonlee411/rank-math-api/modules/seometa/infrastructure/persistence"
	"github.com/jacksonlee411/rank-math-api/pkg/authz"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if len(os.Args) < 2 {
		fatalf("usage: dbtool <migrate|seed-item|set-app-password|smoke> [args]")
	}

	switch os.Args[1] {
	case "migrate":
		migrate(os.Args[2:])
	case "seed-item":
		seedItem(os.Args[2:])
	case "set-app-password":
		setAppPassword(os.Args[2:])
	case "smoke":
		smoke(os.Args[2:])
	default:
		fatalf("unknown subcommand: %s", os.Args[1])
	}
}

// newFlagSet registers --url, defaulting to the DSN the server would use.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	def := ""
	if cfg, err := config.Load(""); err == nil {
		def = cfg.Database.DSN()
	}
	url := fs.String("url", def, "postgres connection string")
	return fs, url
}

func connect(ctx context.Context, url string) *pgx.Conn {
	if url == "" {
		fatalf("missing --url")
	}
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		fatal(err)
	}
	return conn
}

func migrate(args []string) {
	fs, url := newFlagSet("migrate")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn := connect(ctx, *url)
	defer conn.Close(context.Background())

	if err := persistence.Migrate(ctx, conn); err != nil {
		fatal(err)
	}
	fmt.Println("[migrate] OK")
}

func seedItem(args []string) {
	fs, url := newFlagSet("seed-item")
	var kind, status string
	var author int64
	fs.StringVar(&kind, "kind", types.KindPost, "content kind (post|product)")
	fs.StringVar(&status, "status", types.StatusPublish, "post status")
	fs.Int64Var(&author, "author", 0, "owning user id")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn := connect(ctx, *url)
	defer conn.Close(context.Background())

	item, err := persistence.NewContentPGStore(conn).CreateItem(ctx, kind, author, status)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("[seed-item] OK id=%d kind=%s status=%s author=%d\n", item.ID, item.Kind, item.Status, item.AuthorID)
}

func setAppPassword(args []string) {
	fs, url := newFlagSet("set-app-password")
	var login, role, name, password string
	fs.StringVar(&login, "login", "", "user login (created when missing)")
	fs.StringVar(&role, "role", authz.RoleEditor, "role for a newly created user")
	fs.StringVar(&name, "name", "default", "application password name")
	fs.StringVar(&password, "password", "", "password to store; generated when empty")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}
	login = strings.ToLower(strings.TrimSpace(login))
	if login == "" {
		fatalf("missing --login")
	}

	generated := false
	if password == "" {
		p, err := generateAppPassword(rand.Reader)
		if err != nil {
			fatal(err)
		}
		password, generated = p, true
	}
	normalized := server.NormalizeAppPassword(password)
	if len(normalized) < 8 {
		fatalf("password too short after normalization")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(normalized), bcrypt.DefaultCost)
	if err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn := connect(ctx, *url)
	defer conn.Close(context.Background())

	tx, err := conn.Begin(ctx)
	if err != nil {
		fatal(err)
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var userID int64
	if err := tx.QueryRow(ctx, `
INSERT INTO users (login, role)
VALUES ($1, $2)
ON CONFLICT (login) DO UPDATE SET login = EXCLUDED.login
RETURNING id;
`, login, role).Scan(&userID); err != nil {
		fatal(err)
	}
	if _, err := tx.Exec(ctx, `
INSERT INTO application_passwords (user_id, name, password_hash)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, name) DO UPDATE SET
  password_hash = EXCLUDED.password_hash,
  last_used_at = NULL;
`, userID, name, string(hash)); err != nil {
		fatal(err)
	}
	if err := tx.Commit(ctx); err != nil {
		fatal(err)
	}

	fmt.Printf("[set-app-password] OK user_id=%d login=%s name=%s\n", userID, login, name)
	if generated {
		fmt.Printf("password: %s\n", password)
	}
}

func smoke(args []string) {
	fs, url := newFlagSet("smoke")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	conn := connect(ctx, *url)
	defer conn.Close(context.Background())

	if err := persistence.Migrate(ctx, conn); err != nil {
		fatal(err)
	}
	store := persistence.NewContentPGStore(conn)
	item, err := store.CreateItem(ctx, types.KindPost, 0, types.StatusDraft)
	if err != nil {
		fatal(err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), `DELETE FROM content_items WHERE id = $1;`, item.ID)
	}()

	key := string(types.FieldTitle)
	if v, err := store.GetMeta(ctx, item.ID, key); err != nil || v != "" {
		fatalf("expected empty meta, got %q err=%v", v, err)
	}
	if ok, err := store.SetMeta(ctx, item.ID, key, "smoke"); err != nil || !ok {
		fatalf("expected first write to apply, ok=%v err=%v", ok, err)
	}
	if ok, err := store.SetMeta(ctx, item.ID, key, "smoke"); err != nil || ok {
		fatalf("expected identical write to be a no-op, ok=%v err=%v", ok, err)
	}
	if v, err := store.GetMeta(ctx, item.ID, key); err != nil || v != "smoke" {
		fatalf("expected smoke, got %q err=%v", v, err)
	}
	if _, ok, err := store.GetItem(ctx, item.ID+1_000_000); err != nil || ok {
		fatalf("expected missing item, ok=%v err=%v", ok, err)
	}
	fmt.Println("[smoke] OK")
}

const appPasswordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// generateAppPassword returns 24 alphanumerics in space-separated groups of
// four, the form clients paste back verbatim.
func generateAppPassword(r io.Reader) (string, error) {
	var b strings.Builder
	n := big.NewInt(int64(len(appPasswordAlphabet)))
	for i := 0; i < 24; i++ {
		if i > 0 && i%4 == 0 {
			b.WriteByte(' ')
		}
		idx, err := rand.Int(r, n)
		if err != nil {
			return "", fmt.Errorf("generate app password: %w", err)
		}
		b.WriteByte(appPasswordAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

func fatal(err error) {
	if err == nil {
		os.Exit(1)
	}
	fatalf("%v", err)
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// salvacomida es el cliente headless de la Mini App: resuelve la
// sesión contra el backend, mantiene el store local de notificaciones
// y se suscribe al canal push. Sirve para desarrollo y smoke tests del
// core sin el WebView de Telegram.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/salvacomida/miniapp/internal/backend"
	"github.com/salvacomida/miniapp/internal/config"
	"github.com/salvacomida/miniapp/internal/kv"
	"github.com/salvacomida/miniapp/internal/notify"
	"github.com/salvacomida/miniapp/internal/observability/logger"
	"github.com/salvacomida/miniapp/internal/push"
	"github.com/salvacomida/miniapp/internal/security/password"
	"github.com/salvacomida/miniapp/internal/session"
	"github.com/salvacomida/miniapp/internal/telegram"
)

// app agrupa las dependencias que comparten todos los subcomandos.
type app struct {
	cfg      *config.Config
	kv       kv.Store
	resolver *session.Resolver
	notes    *notify.Store
}

func newApp(configPath, initData string, devIdentity bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: "salvacomida",
	})

	store, err := kv.New(kv.Config{
		Driver:   cfg.Storage.Driver,
		Path:     cfg.Storage.Path,
		Host:     cfg.Storage.Redis.Host,
		Port:     cfg.Storage.Redis.Port,
		Password: cfg.Storage.Redis.Password,
		DB:       cfg.Storage.Redis.DB,
		Prefix:   cfg.Storage.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("abrir storage: %w", err)
	}

	if initData == "" {
		initData = cfg.Telegram.InitData
	}
	var bridge telegram.Bridge = telegram.NewEnvBridge(initData)

	client := backend.New(cfg.Backend.BaseURL, backend.WithTimeout(cfg.BackendTimeout()))
	resolver := session.New(store, client, bridge, session.Config{
		Env:             cfg.App.Env,
		AdminExternalID: cfg.Telegram.AdminID,
		DevIdentity:     devIdentity,
	})

	return &app{
		cfg:      cfg,
		kv:       store,
		resolver: resolver,
		notes:    notify.New(store),
	}, nil
}

func (a *app) close() {
	_ = a.kv.Close()
	logger.Sync()
}

func printJSON(v any) {
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}

func main() {
	_ = godotenv.Load()

	var (
		configPath  string
		initData    string
		devIdentity bool
	)

	root := &cobra.Command{
		Use:           "salvacomida",
		Short:         "Cliente de la Mini App SalvaComida",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "ruta al config.yaml")
	root.PersistentFlags().StringVar(&initData, "init-data", "", "initData crudo de Telegram (override de config/env)")
	root.PersistentFlags().BoolVar(&devIdentity, "dev", false, "usa la identidad sintética de desarrollo")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Resuelve la sesión y queda escuchando el canal push",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, initData, devIdentity)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			snap := a.resolver.Resolve(ctx)
			gate := a.resolver.Gate()
			logger.L().Info("sesión resuelta",
				zap.String("gate", string(gate)),
				zap.String("role", string(snap.Role)),
				zap.Bool("ready", snap.IsReady))
			printJSON(map[string]any{"gate": gate, "snapshot": snap})

			ident := notify.IdentityFrom(snap)
			subType, subID := "user", ident.UserID
			if snap.Role == session.RoleSeller && ident.ProfileID != "" {
				subType, subID = "seller", ident.ProfileID
			}
			if subID == "" {
				logger.L().Warn("sin identidad, no hay suscripción push")
				<-ctx.Done()
				return nil
			}

			sub := push.New(push.Config{
				URL:            a.cfg.Push.URL,
				SubscriberType: subType,
				SubscriberID:   subID,
				ReconnectMax:   a.cfg.PushReconnectMax(),
			}, push.IntoStore(a.notes, func(ev push.Event) {
				logger.L().Info("evento crudo", zap.String("event", ev.Event), zap.String("type", ev.Type))
			}))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return sub.Run(gctx) })
			g.Go(func() error {
				<-gctx.Done()
				return sub.Close()
			})
			if err := g.Wait(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	whoamiCmd := &cobra.Command{
		Use:   "whoami",
		Short: "Resuelve la sesión y muestra el snapshot con su gate",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, initData, devIdentity)
			if err != nil {
				return err
			}
			defer a.close()

			snap := a.resolver.Resolve(cmd.Context())
			printJSON(map[string]any{"gate": a.resolver.Gate(), "snapshot": snap})
			return nil
		},
	}

	roleCmd := &cobra.Command{Use: "role", Short: "Rol activo de la sesión"}
	roleSetCmd := &cobra.Command{
		Use:   "set <user|seller|admin>",
		Short: "Fija el rol activo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, initData, devIdentity)
			if err != nil {
				return err
			}
			defer a.close()

			a.resolver.Resolve(cmd.Context())
			a.resolver.SetRole(session.ParseRole(args[0]))
			fmt.Println(a.resolver.Snapshot().Role)
			return nil
		},
	}
	roleCmd.AddCommand(roleSetCmd)

	notifCmd := &cobra.Command{Use: "notifications", Short: "Store local de notificaciones"}
	notifListCmd := &cobra.Command{
		Use:   "list",
		Short: "Lista la vista filtrada para la identidad actual",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, initData, devIdentity)
			if err != nil {
				return err
			}
			defer a.close()

			snap := a.resolver.Resolve(cmd.Context())
			ident := notify.IdentityFrom(snap)
			printJSON(map[string]any{
				"unread":        a.notes.UnreadCount(ident),
				"notifications": a.notes.View(ident),
			})
			return nil
		},
	}
	notifReadCmd := &cobra.Command{
		Use:   "read <id>",
		Short: "Marca una notificación como leída",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, initData, devIdentity)
			if err != nil {
				return err
			}
			defer a.close()
			a.notes.MarkRead(args[0])
			return nil
		},
	}
	notifReadAllCmd := &cobra.Command{
		Use:   "read-all",
		Short: "Marca como leída la vista filtrada actual",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, initData, devIdentity)
			if err != nil {
				return err
			}
			defer a.close()
			snap := a.resolver.Resolve(cmd.Context())
			a.notes.MarkAllRead(notify.IdentityFrom(snap))
			return nil
		},
	}
	notifClearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Borra todas las notificaciones",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, initData, devIdentity)
			if err != nil {
				return err
			}
			defer a.close()
			a.notes.Clear()
			return nil
		},
	}
	notifCmd.AddCommand(notifListCmd, notifReadCmd, notifReadAllCmd, notifClearCmd)

	adminCmd := &cobra.Command{Use: "admin", Short: "Operaciones de admin"}
	adminLoginCmd := &cobra.Command{
		Use:   "login <password>",
		Short: "Completa la autenticación secundaria del admin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, initData, devIdentity)
			if err != nil {
				return err
			}
			defer a.close()

			a.resolver.Resolve(cmd.Context())
			if err := a.resolver.CompleteAdminAuth(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("login admin: %w", err)
			}
			fmt.Println(a.resolver.Gate())
			return nil
		},
	}
	adminHashCmd := &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Genera el PHC argon2id para devserver.admin_password_hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			phc, err := password.Hash(password.Default, args[0])
			if err != nil {
				return err
			}
			fmt.Println(phc)
			return nil
		},
	}
	adminCmd.AddCommand(adminLoginCmd, adminHashCmd)

	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Borra la sesión local (las notificaciones se conservan)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath, initData, devIdentity)
			if err != nil {
				return err
			}
			defer a.close()
			a.resolver.Logout()
			fmt.Println("sesión borrada")
			return nil
		},
	}

	root.AddCommand(runCmd, whoamiCmd, roleCmd, notifCmd, adminCmd, logoutCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

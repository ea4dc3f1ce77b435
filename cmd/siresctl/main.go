package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/authz"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
	"github.com/Tepexicuapan3/SIRES-sub001/internal/prefs"
)

type client struct {
	BaseURL   string
	APIKey    string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
}

func (c *client) do(method, path string, body []byte) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("X-Admin-API-Key", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b, nil
}

func (c *client) print(status int, body []byte) {
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Println(string(p))
			return
		}
	}
	if len(body) > 0 {
		fmt.Println(string(body))
	} else {
		fmt.Printf("status=%d\n", status)
	}
}

func defaultPrefsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "siresctl-prefs.json"
	}
	return filepath.Join(home, ".config", "siresctl", "prefs.json")
}

func main() {
	var (
		baseURL   = envOr("SIRES_GATEWAY_URL", "http://localhost:8080")
		apiKey    = envOr("SIRES_ADMIN_KEY", "")
		out       = envOr("SIRES_OUT", "text")
		prefsPath = envOr("SIRES_PREFS", defaultPrefsPath())
		timeout   = 30 * time.Second
	)

	root := &cobra.Command{
		Use:   "siresctl",
		Short: "CLI de operación del gateway de sesiones SIRES (vía /v1/admin)",
	}
	root.PersistentFlags().StringVar(&baseURL, "gateway-url", baseURL, "URL base del gateway (env SIRES_GATEWAY_URL)")
	root.PersistentFlags().StringVar(&apiKey, "admin-api-key", apiKey, "API key del plano admin (env SIRES_ADMIN_KEY)")
	root.PersistentFlags().StringVar(&out, "out", out, "Formato de salida: json|text")

	cl := &client{HTTP: &http.Client{Timeout: timeout}}
	requireKey := func(cmd *cobra.Command, args []string) error {
		if apiKey == "" {
			return fmt.Errorf("falta API key (flag --admin-api-key o env SIRES_ADMIN_KEY)")
		}
		cl.BaseURL, cl.APIKey, cl.OutFormat = baseURL, apiKey, out
		return nil
	}

	// ping
	pingCmd := &cobra.Command{
		Use:     "ping",
		Short:   "Verifica que el gateway responde y la API key es válida",
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/admin/sessions", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("ping falló: status=%d body=%s", status, string(body))
			}
			fmt.Println("ok")
			return nil
		},
	}

	// sessions list | revoke
	sessionsCmd := &cobra.Command{Use: "sessions", Short: "Sesiones vigentes del gateway"}
	sessionsListCmd := &cobra.Command{
		Use:     "list",
		Short:   "Lista las sesiones vigentes",
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("GET", "/v1/admin/sessions", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("list falló: status=%d body=%s", status, string(body))
			}
			cl.print(status, body)
			return nil
		},
	}
	sessionsRevokeCmd := &cobra.Command{
		Use:     "revoke <sid>",
		Short:   "Revoca una sesión por su ID",
		Args:    cobra.ExactArgs(1),
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			status, body, err := cl.do("DELETE", "/v1/admin/sessions/"+args[0], nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("revoke falló: status=%d body=%s", status, string(body))
			}
			fmt.Println("revocada")
			return nil
		},
	}
	sessionsCmd.AddCommand(sessionsListCmd, sessionsRevokeCmd)

	// lockout reset
	var lockUser string
	lockoutResetCmd := &cobra.Command{
		Use:     "lockout-reset",
		Short:   "Limpia el lockout local de una cuenta",
		PreRunE: requireKey,
		RunE: func(cmd *cobra.Command, args []string) error {
			if lockUser == "" {
				// Hint local: el último username usado.
				if st, err := prefs.Open(prefsPath); err == nil {
					lockUser = st.LastUsername()
				}
			}
			if lockUser == "" {
				return fmt.Errorf("--username es requerido")
			}
			status, body, err := cl.do("POST", "/v1/admin/lockout/"+lockUser+"/reset", nil)
			if err != nil {
				return err
			}
			if status/100 != 2 {
				return fmt.Errorf("lockout-reset falló: status=%d body=%s", status, string(body))
			}
			if st, err := prefs.Open(prefsPath); err == nil {
				_ = st.SetLastUsername(lockUser)
			}
			fmt.Println("lockout limpiado")
			return nil
		},
	}
	lockoutResetCmd.Flags().StringVar(&lockUser, "username", "", "Cuenta a desbloquear (default: la última usada)")

	// authz check — evalúa local o contra el gateway
	var azPerms []string
	var azRemote bool
	authzCheckCmd := &cobra.Command{
		Use:   "authz-check <requirement>",
		Short: "Evalúa un requirement (\"admin\", \"any:a,b\", \"all:a,b\" o un código)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if azRemote {
				if err := requireKey(cmd, args); err != nil {
					return err
				}
				payload, _ := json.Marshal(map[string]any{
					"user_permissions": azPerms,
					"requirement":      args[0],
				})
				status, body, err := cl.do("POST", "/v1/admin/authz/check", payload)
				if err != nil {
					return err
				}
				if status/100 != 2 {
					return fmt.Errorf("authz-check falló: status=%d body=%s", status, string(body))
				}
				cl.print(status, body)
				return nil
			}

			req, err := authz.ParseRequirement(args[0])
			if err != nil {
				return err
			}
			p := &identity.Principal{Permissions: azPerms}
			if authz.Evaluate(p, req) {
				fmt.Println("allowed")
			} else {
				fmt.Println("denied")
			}
			return nil
		},
	}
	authzCheckCmd.Flags().StringSliceVar(&azPerms, "perms", nil, "Permisos del usuario (CSV)")
	authzCheckCmd.Flags().BoolVar(&azRemote, "remote", false, "Evaluar contra el gateway en vez de localmente")

	// prefs show | theme
	prefsCmd := &cobra.Command{Use: "prefs", Short: "Preferencias locales de siresctl"}
	prefsShowCmd := &cobra.Command{
		Use:   "show",
		Short: "Muestra las preferencias guardadas",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := prefs.Open(prefsPath)
			if err != nil {
				return err
			}
			fmt.Printf("last_username: %s\ntheme: %s\n", st.LastUsername(), st.Theme())
			return nil
		},
	}
	prefsThemeCmd := &cobra.Command{
		Use:   "theme <system|light|dark>",
		Short: "Fija el tema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := prefs.Open(prefsPath)
			if err != nil {
				return err
			}
			return st.SetTheme(prefs.Theme(args[0]))
		},
	}
	prefsCmd.AddCommand(prefsShowCmd, prefsThemeCmd)

	root.AddCommand(pingCmd, sessionsCmd, lockoutResetCmd, authzCheckCmd, prefsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// Package prefs persiste preferencias locales no sensibles en un archivo
// JSON: el último username usado (para precargar el login) y el tema de la
// UI. La superficie es deliberadamente cerrada: no hay un Set genérico, así
// que tokens o credenciales no tienen por dónde colarse a disco.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/util/atomicwrite"
)

// Theme es el tema visual de la UI.
type Theme string

const (
	ThemeSystem Theme = "system"
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
)

func validTheme(t Theme) bool {
	switch t {
	case ThemeSystem, ThemeLight, ThemeDark:
		return true
	}
	return false
}

type fileData struct {
	LastUsername string `json:"last_username,omitempty"`
	Theme        Theme  `json:"theme,omitempty"`
}

// Store lee y escribe el archivo de preferencias. Es seguro para uso
// concurrente; cada mutación reescribe el archivo completo de forma atómica.
type Store struct {
	mu   sync.Mutex
	path string
	data fileData
}

// Open carga las preferencias desde path. Si el archivo no existe o está
// corrupto arranca vacío: las preferencias son un hint, no un registro.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("prefs: path vacío")
	}
	s := &Store{path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prefs: read %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		s.data = fileData{}
	}
	if !validTheme(s.data.Theme) {
		s.data.Theme = ""
	}
	return s, nil
}

// LastUsername retorna el hint del último username, o "" si no hay.
func (s *Store) LastUsername() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.LastUsername
}

// SetLastUsername guarda el hint. Con "" lo borra.
func (s *Store) SetLastUsername(username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.LastUsername = username
	return s.saveLocked()
}

// Theme retorna el tema configurado, ThemeSystem si no hay.
func (s *Store) Theme() Theme {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data.Theme == "" {
		return ThemeSystem
	}
	return s.data.Theme
}

// SetTheme guarda el tema. Rechaza valores fuera del catálogo.
func (s *Store) SetTheme(t Theme) error {
	if !validTheme(t) {
		return fmt.Errorf("prefs: tema inválido %q", t)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Theme = t
	return s.saveLocked()
}

// Clear borra todas las preferencias.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = fileData{}
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("prefs: marshal: %w", err)
	}
	if err := atomicwrite.AtomicWriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("prefs: write %s: %w", s.path, err)
	}
	return nil
}

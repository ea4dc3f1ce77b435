// Package authz implementa la evaluación de permisos de SIRES: lógica pura
// sobre el Principal, sin I/O ni estado. Los códigos de permiso son strings
// opacos que se comparan por igualdad exacta; no hay jerarquía ni prefijos.
// Ante cualquier duda (principal nil, lista vacía, código desconocido) la
// respuesta es negar.
package authz

import (
	"fmt"
	"strings"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/identity"
)

// Wildcard otorga acceso total. Solo el catálogo del backend lo asigna.
const Wildcard = "*"

// IsAdmin reporta si el principal porta el wildcard.
func IsAdmin(p *identity.Principal) bool {
	if p == nil {
		return false
	}
	for _, c := range p.Permissions {
		if c == Wildcard {
			return true
		}
	}
	return false
}

// HasPermission reporta si el principal porta el código exacto (o el
// wildcard). "pacientes:expediente" no implica "pacientes:expediente:leer"
// ni al revés.
func HasPermission(p *identity.Principal, code string) bool {
	if p == nil || code == "" {
		return false
	}
	for _, c := range p.Permissions {
		if c == Wildcard || c == code {
			return true
		}
	}
	return false
}

// HasAnyPermission reporta si el principal porta alguno de los códigos.
// Lista vacía niega siempre, incluso con wildcard: pedir "alguno de nada"
// no describe ningún acceso.
func HasAnyPermission(p *identity.Principal, codes ...string) bool {
	if p == nil || len(codes) == 0 {
		return false
	}
	for _, code := range codes {
		if HasPermission(p, code) {
			return true
		}
	}
	return false
}

// HasAllPermissions reporta si el principal porta todos los códigos. Lista
// vacía concede (verdad vacua), principal nil niega.
func HasAllPermissions(p *identity.Principal, codes ...string) bool {
	if p == nil {
		return false
	}
	for _, code := range codes {
		if !HasPermission(p, code) {
			return false
		}
	}
	return true
}

type reqKind int

const (
	reqPermission reqKind = iota
	reqAnyOf
	reqAllOf
	reqAdmin
)

// Requirement describe lo que una ruta o pantalla exige. Se construye con
// Permission, AnyOf, AllOf o AdminOnly y se decide con Evaluate.
type Requirement struct {
	kind  reqKind
	codes []string
}

// Permission exige un código exacto.
func Permission(code string) Requirement {
	return Requirement{kind: reqPermission, codes: []string{code}}
}

// AnyOf exige al menos uno de los códigos.
func AnyOf(codes ...string) Requirement {
	return Requirement{kind: reqAnyOf, codes: codes}
}

// AllOf exige todos los códigos.
func AllOf(codes ...string) Requirement {
	return Requirement{kind: reqAllOf, codes: codes}
}

// AdminOnly exige el wildcard. Ningún catálogo de códigos lo satisface.
func AdminOnly() Requirement {
	return Requirement{kind: reqAdmin}
}

// Evaluate decide el requirement contra el principal. Fail-closed.
func Evaluate(p *identity.Principal, req Requirement) bool {
	switch req.kind {
	case reqPermission:
		if len(req.codes) != 1 {
			return false
		}
		return HasPermission(p, req.codes[0])
	case reqAnyOf:
		return HasAnyPermission(p, req.codes...)
	case reqAllOf:
		return HasAllPermissions(p, req.codes...)
	case reqAdmin:
		return IsAdmin(p)
	}
	return false
}

// String retorna la forma textual parseable por ParseRequirement.
func (r Requirement) String() string {
	switch r.kind {
	case reqAdmin:
		return "admin"
	case reqAnyOf:
		return "any:" + strings.Join(r.codes, ",")
	case reqAllOf:
		return "all:" + strings.Join(r.codes, ",")
	default:
		if len(r.codes) == 1 {
			return r.codes[0]
		}
		return ""
	}
}

// ParseRequirement parsea la forma textual: "admin", "any:a,b", "all:a,b" o
// un código suelto.
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Requirement{}, fmt.Errorf("authz: requirement vacío")
	}
	if s == "admin" {
		return AdminOnly(), nil
	}
	split := func(csv string) ([]string, error) {
		var out []string
		for _, part := range strings.Split(csv, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("authz: lista de códigos vacía en %q", s)
		}
		return out, nil
	}
	switch {
	case strings.HasPrefix(s, "any:"):
		codes, err := split(s[len("any:"):])
		if err != nil {
			return Requirement{}, err
		}
		return AnyOf(codes...), nil
	case strings.HasPrefix(s, "all:"):
		codes, err := split(s[len("all:"):])
		if err != nil {
			return Requirement{}, err
		}
		return AllOf(codes...), nil
	}
	return Permission(s), nil
}

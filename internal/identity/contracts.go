package identity

import "context"

// Client es el contrato con el backend de identidad. Toda operación retorna
// un Principal o un *Error de la taxonomía; el manejo de tokens queda
// encapsulado en la implementación, el núcleo de sesión nunca los inspecciona.
type Client interface {
	// Login autentica con usuario y contraseña.
	Login(ctx context.Context, username, password string) (*Principal, error)

	// Refresh renueva la sesión y retorna el Principal actualizado (mismo ID).
	Refresh(ctx context.Context) (*Principal, error)

	// Logout invalida la sesión del lado del backend. Best-effort: el caller
	// limpia su estado local aunque esta llamada falle.
	Logout(ctx context.Context) error

	// CurrentPrincipal obtiene el Principal vigente para la sesión actual.
	CurrentPrincipal(ctx context.Context) (*Principal, error)

	// CompleteOnboarding fija la nueva contraseña y acepta términos.
	// En éxito retorna el Principal reemplazado con MustChangePassword=false.
	CompleteOnboarding(ctx context.Context, newPassword string, termsAccepted bool) (*Principal, error)

	// RequestResetCode solicita el envío de un código de recuperación.
	RequestResetCode(ctx context.Context, email string) error

	// VerifyResetCode valida el código recibido y entrega el reset token.
	VerifyResetCode(ctx context.Context, email, code string) (*ResetVerification, error)

	// ResetPassword fija la nueva contraseña usando el reset token vigente.
	ResetPassword(ctx context.Context, newPassword string) (*Principal, error)
}

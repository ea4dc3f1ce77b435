package http

import (
	"context"
	"net/http"
	"time"

	"github.com/Tepexicuapan3/SIRES-sub001/internal/observability/logger"
)

// Serve arranca el servidor y lo apaga de forma ordenada cuando ctx se
// cancela: deja de aceptar conexiones y drena las vigentes hasta 15s.
func Serve(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("gateway listening", logger.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down gateway")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return srv.Close()
	}
	return nil
}

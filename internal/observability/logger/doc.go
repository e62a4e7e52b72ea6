// Package logger provee un logger Zap singleton con scoping por contexto.
//
// # Decisiones
//
//   - Singleton: una sola instancia global inicializada con Init().
//   - Context scoping: cada operación puede llevar un logger "scoped" con
//     campos propios (user_id, role, etc.) sin crear un core nuevo.
//   - Entornos: "dev" usa consola con colores, "prod" usa JSON.
//
// # Uso
//
// Inicialización (una vez, en main):
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
//	defer logger.Sync()
//
// Con contexto:
//
//	log := logger.From(ctx)
//	log.Info("session resolved", logger.Role(role))
//
// Sin contexto (fallback al singleton):
//
//	logger.L().Info("client started")
package logger

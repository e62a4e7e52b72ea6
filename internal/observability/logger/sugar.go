package logger

import "go.uber.org/zap"

// S retorna el SugaredLogger del singleton, para logs printf-style
// en CLIs y herramientas de desarrollo.
//
//	logger.S().Infof("notificación %s creada", id)
func S() *zap.SugaredLogger {
	return L().Sugar()
}

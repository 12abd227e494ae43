package server

import (
	"fmt"
)

func (gss GameSessionState) Name() string {
	switch gss {
	case GS_NEW:
		return "GS_NEW"
	case GS_PAIRED:
		return "GS_PAIRED"
	case GS_OVER:
		return "GS_OVER"
	default:
		return fmt.Sprintf("n/a:%d", gss)
	}
}

func (ps PlayerSessionState) Name() string {
	switch ps {
	case PS_NEW:
		return "NEW"
	case PS_WAIT:
		return "WAIT"
	case PS_PAIRED:
		return "PAIRED"
	case PS_ERR:
		return "ERR"
	default:
		return "N/A"
	}
}

func errorMessage(format string, args ...interface{}) []string {
	return []string{fmt.Sprintf(format, args...)}
}

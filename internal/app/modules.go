package app

import (
	"github.com/Kube-Engine/Flow/internal/registry"
	"github.com/Kube-Engine/Flow/modules/fail"
	"github.com/Kube-Engine/Flow/modules/http_request"
	"github.com/Kube-Engine/Flow/modules/print"
	"github.com/Kube-Engine/Flow/modules/sleep"
	"github.com/Kube-Engine/Flow/modules/socketio"
)

// CoreModules is the definitive list of all modules that are compiled into
// the flow binary.
func CoreModules() []registry.Module {
	return []registry.Module{
		&print.Module{},
		&sleep.Module{},
		&fail.Module{},
		&http_request.Module{},
		&socketio.Module{},
	}
}

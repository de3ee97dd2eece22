package router

import (
	"strings"

	gwerrors "github.com/Opizontas-Studio/grpc-opizontas/internal/errors"
)

// ExtractServiceName implements the path extractor (C4): given a gRPC
// canonical method path "/package.Service/Method", it returns the bare
// service name — the token after the final "." and before the second "/".
// Fails MalformedPath unless the path has exactly two non-empty
// "/"-separated segments and the first contains a ".".
func ExtractServiceName(methodPath string) (string, error) {
	if !strings.HasPrefix(methodPath, "/") {
		return "", gwerrors.ErrMalformedPath
	}
	rest := methodPath[1:]
	segments := strings.Split(rest, "/")
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return "", gwerrors.ErrMalformedPath
	}
	fullService := segments[0]
	idx := strings.LastIndex(fullService, ".")
	if idx < 0 || idx == len(fullService)-1 {
		return "", gwerrors.ErrMalformedPath
	}
	return fullService[idx+1:], nil
}

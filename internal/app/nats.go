package app

import (
	"github.com/nats-io/nats.go"

	"github.com/spec-kit/doubt-service/internal/persistence"
)

func natsHandle(n *persistence.NATS) *nats.Conn {
	if n == nil {
		return nil
	}
	return n.Conn
}

package speaker

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/hyperdot/hyperdot-node/common"
	"github.com/hyperdot/hyperdot-node/log"
	"github.com/hyperdot/hyperdot-node/storage"
)

// Blocks can carry large call params; the rpc default is 5 MiB.
const maxRequestBody = 64 << 20

// BlockWriter is where a storage node puts received blocks.
type BlockWriter interface {
	WriteBlock(ctx context.Context, req *common.WriteBlock) error
}

type storageService struct {
	writer BlockWriter
	logger *log.Logger
}

// WriteBlock serves storage_writeBlock. Engines that fail while others
// succeed are logged and the request is still acknowledged, matching the
// best-effort fan-out of the storage controller.
func (s *storageService) WriteBlock(ctx context.Context, req common.WriteBlock) (*WriteBlockResponse, error) {
	err := s.writer.WriteBlock(ctx, &req)
	var fanout *storage.FanoutError
	switch {
	case err == nil:
	case errors.As(err, &fanout):
		s.logger.Warn("block stored partially",
			"chain", req.Chain,
			"succeeded", fanout.Succeeded,
			"err", err,
		)
	default:
		s.logger.Error("write block failed", "chain", req.Chain, "err", err)
		return nil, err
	}
	return &WriteBlockResponse{}, nil
}

// NewServer returns a JSON-RPC server exposing the storage namespace. It
// implements http.Handler.
func NewServer(writer BlockWriter, logger *log.Logger) (*rpc.Server, error) {
	server := rpc.NewServer()
	server.SetHTTPBodyLimit(maxRequestBody)
	if err := server.RegisterName(Namespace, &storageService{
		writer: writer,
		logger: logger.WithModule("speaker_server"),
	}); err != nil {
		return nil, err
	}
	return server, nil
}

package main

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/judwhite/go-svc/svc"
	"github.com/spf13/cobra"
	"github.com/sxyafiq/seqgen"
	"github.com/sxyafiq/seqgen/internal/server"
	"go.uber.org/zap"
)

type program struct {
	once   sync.Once
	root   *rootOptions
	cmd    *cobra.Command
	logger *zap.Logger
	server *server.Server
}

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve IDs over HTTP until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prg := &program{root: root, cmd: cmd}
			return svc.Run(prg, syscall.SIGINT, syscall.SIGTERM)
		},
	}
}

func (p *program) Init(env svc.Environment) error {
	if env.IsWindowsService() {
		dir := filepath.Dir(os.Args[0])
		return os.Chdir(dir)
	}
	return nil
}

func (p *program) Start() error {
	cfg, logger, err := p.root.load(p.cmd, true)
	if err != nil {
		return err
	}
	p.logger = logger

	genCfg, err := cfg.Generator(logger)
	if err != nil {
		return err
	}
	// The service owns the process generator.
	if err := seqgen.Init(genCfg); err != nil {
		return err
	}

	p.server, err = server.NewServer(cfg, seqgen.Default(), logger)
	if err != nil {
		return err
	}

	go func() {
		if err := p.server.Main(); err != nil {
			logger.Error("server exited", zap.Error(err))
			p.Stop()
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop() error {
	p.once.Do(func() {
		if p.server != nil {
			p.server.Exit()
		}
		if p.logger != nil {
			_ = p.logger.Sync()
		}
	})
	return nil
}

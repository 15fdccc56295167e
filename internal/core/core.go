// Package core contains the main struct of the software.
package core

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gin-gonic/gin"

	"github.com/a10y/camerars/internal/conf"
	"github.com/a10y/camerars/internal/ingest"
	"github.com/a10y/camerars/internal/logger"
	"github.com/a10y/camerars/internal/playback"
	"github.com/a10y/camerars/internal/recordstore"
	"github.com/a10y/camerars/internal/uploader"
)

var version = "v0.0.0"

var defaultConfPaths = []string{
	"camerars.yml",
}

var cli struct {
	Version  bool   `help:"print version"`
	Confpath string `help:"path to a config file"`
	Prefix   string `default:"/" help:"key prefix of uploaded segments"`
	Source   string `arg:"" optional:"" help:"RTSP URL or MPEG-TS file to record"`
}

// Core is an instance of camerars.
type Core struct {
	ctx            context.Context
	ctxCancel      func()
	confPath       string
	conf           *conf.Conf
	logger         *logger.Logger
	index          *recordstore.Index
	uploader       *uploader.Uploader
	playbackServer *playback.Server
	pipeline       *ingest.Pipeline
	exitOK         bool

	// out
	done chan struct{}
}

// New allocates a Core.
func New(args []string) (*Core, bool) {
	parser, err := kong.New(&cli,
		kong.Description("camerars "+version),
		kong.UsageOnError())
	if err != nil {
		panic(err)
	}

	_, err = parser.Parse(args)
	parser.FatalIfErrorf(err)

	if cli.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	if cli.Source == "" {
		fmt.Println("ERR: a source must be provided")
		return nil, false
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	p := &Core{
		ctx:       ctx,
		ctxCancel: ctxCancel,
		done:      make(chan struct{}),
	}

	p.conf, p.confPath, err = conf.Load(cli.Confpath, defaultConfPaths)
	if err != nil {
		fmt.Printf("ERR: %s\n", err)
		return nil, false
	}

	err = p.createResources()
	if err != nil {
		if p.logger != nil {
			p.Log(logger.Error, "%s", err)
		} else {
			fmt.Printf("ERR: %s\n", err)
		}
		p.closeResources()
		return nil, false
	}

	go p.run()

	return p, true
}

// Close closes Core and waits for all goroutines to return.
func (p *Core) Close() {
	p.ctxCancel()
	<-p.done
}

// Wait waits for the Core to exit and reports whether it exited cleanly.
func (p *Core) Wait() bool {
	<-p.done
	return p.exitOK
}

// Log implements logger.Writer.
func (p *Core) Log(level logger.Level, format string, args ...interface{}) {
	p.logger.Log(level, format, args...)
}

func (p *Core) run() {
	defer close(p.done)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-interrupt:
		p.Log(logger.Info, "shutting down gracefully")
		p.exitOK = true

	case <-p.pipeline.Done():
		err := p.pipeline.Err()
		if err != nil {
			p.Log(logger.Error, "%s", err)
		} else {
			p.exitOK = true
		}

	case <-p.ctx.Done():
		p.exitOK = true
	}

	p.ctxCancel()

	p.closeResources()
}

func (p *Core) createResources() error {
	lo := &logger.Logger{
		Level:        logger.Level(p.conf.LogLevel),
		Destinations: p.conf.LogDestinations,
		Structured:   p.conf.LogStructured,
		File:         p.conf.LogFile,
	}
	err := lo.Initialize()
	if err != nil {
		return err
	}
	p.logger = lo

	p.Log(logger.Info, "camerars %s", version)

	if p.confPath != "" {
		p.Log(logger.Debug, "configuration loaded from %s", p.confPath)
	} else {
		p.Log(logger.Warn, "configuration file not found, using defaults")
	}

	gin.SetMode(gin.ReleaseMode)

	ix, err := recordstore.OpenIndex(p.conf.IndexPath)
	if err != nil {
		return err
	}
	p.index = ix

	var store uploader.ObjectStore
	if p.conf.S3.Bucket != "" {
		store, err = uploader.NewS3Store(p.conf.S3)
		if err != nil {
			return err
		}
	}

	u := &uploader.Uploader{
		Store:       store,
		Prefix:      cli.Prefix,
		LocalDir:    p.conf.RecordingsDir,
		QueueSize:   p.conf.UploadQueueSize,
		MaxAttempts: p.conf.UploadAttempts,
		Parent:      p,
	}
	u.Initialize()
	p.uploader = u

	ps := &playback.Server{
		Address:      p.conf.HTTPAddress,
		ReadTimeout:  p.conf.ReadTimeout,
		RollDuration: p.conf.RollDuration,
		Index:        p.index,
		Uploader:     p.uploader,
		Parent:       p,
	}
	err = ps.Initialize()
	if err != nil {
		return err
	}
	p.playbackServer = ps

	pl := &ingest.Pipeline{
		Source:        cli.Source,
		ReadTimeout:   time.Duration(p.conf.ReadTimeout),
		RecordingsDir: p.conf.RecordingsDir,
		RollDuration:  time.Duration(p.conf.RollDuration),
		Index:         p.index,
		Uploader:      p.uploader,
		Parent:        p,
	}
	err = pl.Initialize()
	if err != nil {
		return err
	}
	p.pipeline = pl

	return nil
}

func (p *Core) closeResources() {
	if p.pipeline != nil {
		p.pipeline.Close()
	}

	if p.playbackServer != nil {
		p.playbackServer.Close()
	}

	if p.uploader != nil {
		p.uploader.Close()
	}

	if p.index != nil {
		p.index.Close() //nolint:errcheck
	}

	if p.logger != nil {
		p.logger.Close()
	}
}

// Package playback contains the playback server.
package playback

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/a10y/camerars/internal/conf"
	"github.com/a10y/camerars/internal/logger"
	"github.com/a10y/camerars/internal/protocols/httpp"
	"github.com/a10y/camerars/internal/recordstore"
	"github.com/a10y/camerars/internal/restrictnetwork"
)

const (
	playlistMIME = "application/x-mpegURL"
	segmentMIME  = "video/MP2T"
)

// ChunkReader is the interface of the uploader used by the server.
type ChunkReader interface {
	ReadChunk(ctx context.Context, name string) ([]byte, error)
}

// Server is the playback server.
type Server struct {
	Address      string
	ReadTimeout  conf.Duration
	RollDuration conf.Duration
	Index        *recordstore.Index
	Uploader     ChunkReader
	Parent       logger.Writer

	httpServer *httpp.WrappedServer
}

// Initialize initializes Server.
func (s *Server) Initialize() error {
	router := gin.New()

	router.GET("/vod", s.onVOD)
	router.GET("/files", s.onFileList)
	router.GET("/files/:id", s.onFile)

	network, address := restrictnetwork.Restrict("tcp", s.Address)

	s.httpServer = &httpp.WrappedServer{
		Network:     network,
		Address:     address,
		ReadTimeout: time.Duration(s.ReadTimeout),
		Handler:     router,
		Parent:      s,
	}
	err := s.httpServer.Initialize()
	if err != nil {
		return err
	}

	s.Log(logger.Info, "listener opened on "+address)

	return nil
}

// Close closes Server.
func (s *Server) Close() {
	s.Log(logger.Info, "listener is closing")
	s.httpServer.Close()
}

// Log implements logger.Writer.
func (s *Server) Log(level logger.Level, format string, args ...interface{}) {
	s.Parent.Log(level, "[playback] "+format, args...)
}

func (s *Server) writeError(ctx *gin.Context, status int, err error) {
	// show error in logs
	s.Log(logger.Error, err.Error())

	// add error to response
	ctx.String(status, err.Error())
}

func (s *Server) onVOD(ctx *gin.Context) {
	start, err := time.Parse(time.RFC3339, ctx.Query("start_time"))
	if err != nil {
		s.writeError(ctx, http.StatusBadRequest, fmt.Errorf("invalid start_time: %w", err))
		return
	}

	end, err := time.Parse(time.RFC3339, ctx.Query("end_time"))
	if err != nil {
		s.writeError(ctx, http.StatusBadRequest, fmt.Errorf("invalid end_time: %w", err))
		return
	}

	entries, err := s.Index.Query(ctx.Request.Context(), start, end)
	if err != nil {
		s.writeError(ctx, http.StatusInternalServerError, err)
		return
	}

	pl := Playlist{
		Kind:           PlaylistVOD,
		TargetDuration: int(time.Duration(s.RollDuration) / time.Second),
		Files:          make([]PlaylistFile, len(entries)),
	}
	for i, e := range entries {
		pl.Files[i] = PlaylistFile{ID: e.ID, Duration: e.Duration}
	}

	ctx.Data(http.StatusOK, playlistMIME, pl.Marshal())
}

func (s *Server) onFile(ctx *gin.Context) {
	byts, err := s.Uploader.ReadChunk(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		s.writeError(ctx, http.StatusInternalServerError, err)
		return
	}

	ctx.Data(http.StatusOK, segmentMIME, byts)
}

func (s *Server) onFileList(ctx *gin.Context) {
	ctx.String(http.StatusOK, "all files")
}

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cunning-folk/Document-Processor/internal/config"
	"github.com/cunning-folk/Document-Processor/internal/data/store"
	"github.com/cunning-folk/Document-Processor/internal/domain/docModel"
	"github.com/cunning-folk/Document-Processor/internal/extract"
	"github.com/cunning-folk/Document-Processor/internal/ingest"
	"github.com/cunning-folk/Document-Processor/internal/llm"
	"github.com/cunning-folk/Document-Processor/internal/llm/gemini"
	openaillm "github.com/cunning-folk/Document-Processor/internal/llm/openai"
	"github.com/cunning-folk/Document-Processor/internal/processor"
	"github.com/cunning-folk/Document-Processor/internal/scheduler"
	"github.com/cunning-folk/Document-Processor/internal/server"
	"github.com/cunning-folk/Document-Processor/pkg/logger_i"
)

var (
	listenAddr string
	submitPath string
)

func main() {

	logger_i.Init()
	var logger = logger_i.NewLogger("main")

	//config
	flag.StringVar(&listenAddr, "listen-addr", config.ServerListenAddr, "server listen address")
	flag.StringVar(&submitPath, "ingest", "", "optional file to submit for processing on startup")
	flag.Parse()

	serviceContext, closeExternalServices := context.WithCancel(context.Background())
	defer closeExternalServices()

	//document store, with an in-memory fallback when redis is offline
	var docStore docModel.DocumentStore
	if redisDocs := store.GetRedisDocumentStore(serviceContext); redisDocs != nil {
		docStore = redisDocs
	} else if config.FALLBACK_REDIS_TO_INTERNALSTORE {
		logger.Error("Redis store is offline, falling back to in-memory store")
		docStore = store.InitInMemoryDocumentStore()
	} else {
		logger.Error("Redis store is offline. Shutting down.")
		return
	}

	//llm provider
	procConfig := processor.DefaultConfig()
	var completer llm.Completer
	var sessions llm.SessionRunner

	switch config.LLMProvider {
	case "gemini":
		client := gemini.GetGeminiClient(serviceContext, os.Getenv("GEMINI_API_KEY"))
		if client == nil {
			logger.Error("Gemini client failed to initialize. Shutting down.")
			return
		}
		completer = client
		procConfig.PrimaryModel = config.GeminiRewriteModel
		procConfig.EscalationModel = config.GeminiEscalationModel
	default:
		client := openaillm.GetOpenAIClient(serviceContext, os.Getenv("OPENAI_API_KEY"))
		if client == nil {
			logger.Error("OpenAI client failed to initialize. Shutting down.")
			return
		}
		completer = client
		sessions = client
	}

	chunkProcessor := processor.NewChunkProcessor(docStore, completer, sessions, procConfig)
	sched := scheduler.NewScheduler(docStore, chunkProcessor)
	sched.Start(serviceContext)

	ingestService := ingest.NewService(docStore, extract.NewExtractor())
	if submitPath != "" {
		data, err := os.ReadFile(submitPath)
		if err != nil {
			logger.Error("Could not read submit file", "path", submitPath, "error", err)
			return
		}
		doc, err := ingestService.SubmitDocument(serviceContext, filepath.Base(submitPath), data)
		if err != nil {
			logger.Error("Submit failed", "path", submitPath, "error", err)
			return
		}
		logger.Info("Submitted document", "docId", doc.Id, "chunks", doc.TotalChunks)
	}

	//server handling
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)
	stopExecution := make(chan bool, 1)

	shutdownParams := server.ShutdownParams{
		GracefulShutdown: gracefulShutdown,
		StopExecution:    stopExecution,
		StopScheduler: func() {
			sched.Stop()
			extract.ShutdownOCREngine()
		},
		CloseServices: closeExternalServices,
	}
	go server.ShutDownHandler(shutdownParams)
	go server.CreateServer(listenAddr)

	<-stopExecution
	logger.Info("Server stopped")
}

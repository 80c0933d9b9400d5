package config

import (
	"log/slog"
	"time"
)

const (
	IS_PROD                         = false
	LOG_LEVEL_PROD                  = slog.LevelInfo
	FALLBACK_REDIS_TO_INTERNALSTORE = true //if redis init fails, it falls back to an internal in-memory store
	TRACE_ID_KEY                    = "traceId"

	//scheduler
	SchedulerTickInterval = 2 * time.Second
	StuckChunkThreshold   = 5 * time.Minute
	MaxStuckRecoveries    = 3 //a chunk stalling in processing past this is failed, not rescued

	//chunking
	MaxChunkSize     = 250_000 //characters, target size for the splitter
	ChunkHardCeiling = 300_000 //defensive bound, a chunk above this is failed without an LLM call

	//rewrite / retention guard
	//these are product-tuning constants, not hard invariants
	RetentionThreshold  = 0.95
	MaxRetentionRetries = 2

	//llm
	LLMProvider              = "openai" //"openai" or "gemini"
	RewriteModel             = "gpt-4o-mini"
	EscalationModel          = "gpt-4o" //used after a low-retention retry
	GeminiRewriteModel       = "gemini-2.5-flash-lite-preview-09-2025"
	GeminiEscalationModel    = "gemini-2.5-pro"
	ModelTemperature         = 0.2 //low temperature, the task is reformatting not generation
	LLMRequestsPerSecond     = 1
	LLMBurst                 = 1
	AssistantRunPollInterval = 2 * time.Second
	AssistantRunTimeout      = 3 * time.Minute

	//extraction
	MinExtractedChars    = 50 //below this the text layer is considered empty
	MinOCRPageChars      = 12 //filters blank / noise pages
	MaxOCRPages          = 20
	RasterDPI            = 200
	EncryptionScanPrefix = 8192 //bytes of the raw buffer scanned for encryption markers
	PageExtractTimeout   = 10 * time.Second
	ToolExecTimeout      = 2 * time.Minute

	//server timeouts
	ReadTimeout            = 5 * time.Second
	WriteTimeout           = 10 * time.Second
	IdleTimeout            = 120 * time.Second
	ShutdownContextTimeout = 10 * time.Second

	//server listening port - /metrics and /healthz only
	ServerListenAddr = ":3000"

	//redis
	redisHost     = "127.0.0.1"
	redisPort     = "6379"
	RedisAddr     = redisHost + ":" + redisPort
	RedisPassword = ""

	//redis has 16 DB we can use
	RedisDocumentStore = 0

	//documents expire a fixed offset after creation
	//a cleanup pass runs on every scheduler tick
	DocumentRetention   = 24 * time.Hour
	RedisDocumentKeyTTL = 25 * time.Hour //slightly above retention so cleanup sees the record first
)

package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	GeneratorStatic = "static"
	GeneratorLLM    = "llm"

	GraderExact = "exact"
	GraderLLM   = "llm"
)

// 录音上传相关常量
const (
	MimeAudio        = "audio/"
	MimeWebm         = "video/webm"
	MaxRecordingSize = 10 << 20
)

var (
	AllowedRecordingTypes = []string{MimeAudio, MimeWebm}
)

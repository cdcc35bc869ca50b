package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sia_backend/internal/util"
	"sia_backend/pkg/logger"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RecordingResult is returned to the client, which passes URL back as
// answer.recording_url.
type RecordingResult struct {
	URL      string  `json:"url"`
	Duration float64 `json:"duration"`
	Format   string  `json:"format,omitempty"`
}

type RecordingService struct {
	Activities *ActivityService
	Storage    *StorageService
	// probe 可在测试中替换
	probe func(path string) (*util.AudioInfo, error)
}

func NewRecordingService(activities *ActivityService, storage *StorageService) *RecordingService {
	return &RecordingService{
		Activities: activities,
		Storage:    storage,
		probe:      util.GetAudioInfo,
	}
}

// UploadRecording stores an audio answer for an item the user owns.
func (s *RecordingService) UploadRecording(ctx context.Context, userID, activityID, itemID string, file *multipart.FileHeader) (*RecordingResult, error) {
	if _, err := s.Activities.GetActivityItem(ctx, userID, activityID, itemID); err != nil {
		return nil, err
	}
	if file.Size <= 0 || file.Size > util.MaxRecordingSize {
		return nil, fmt.Errorf("%w: size %d out of range", util.ErrInvalidRecording, file.Size)
	}

	src, err := file.Open()
	if err != nil {
		return nil, errors.Join(util.ErrInvalidRecording, err)
	}
	defer src.Close()

	mimeType, err := util.SniffRecordingType(src)
	if err != nil {
		if errors.Is(err, util.ErrInvalidRecording) {
			return nil, err
		}
		return nil, errors.Join(util.ErrStorageFailure, err)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	tmp, err := os.CreateTemp("", "recording-*"+ext)
	if err != nil {
		return nil, errors.Join(util.ErrStorageFailure, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, errors.Join(util.ErrStorageFailure, err)
	}
	tmp.Close()

	result := &RecordingResult{}
	if info, err := s.probe(tmp.Name()); err != nil {
		// ffprobe 不可用时仍然保存录音
		logger.Ctx(ctx).Warn("failed to probe recording", zap.String("activity_item_id", itemID), zap.Error(err))
	} else {
		result.Duration = info.Duration
		result.Format = info.Format
	}

	key := fmt.Sprintf("recordings/%s/%s/%s%s", userID, activityID, uuid.New().String(), ext)
	url, err := s.Storage.UploadFile(ctx, key, tmp.Name(), mimeType)
	if err != nil {
		return nil, errors.Join(util.ErrStorageFailure, err)
	}
	result.URL = url

	logger.Log.Info("recording uploaded",
		zap.String("activity_item_id", itemID),
		zap.String("key", key),
		zap.Float64("duration", result.Duration))
	return result, nil
}

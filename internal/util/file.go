package util

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SniffRecordingType 读取文件头判断 MIME 类型，校验后把读指针拨回开头。
// 客户端声明的 Content-Type 不可信，只看内容。
func SniffRecordingType(r io.ReadSeeker) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", err
	}

	mimeType := http.DetectContentType(head[:n])
	for _, allowed := range AllowedRecordingTypes {
		if strings.HasPrefix(mimeType, allowed) {
			return mimeType, nil
		}
	}
	return mimeType, fmt.Errorf("%w: unsupported type %s", ErrInvalidRecording, mimeType)
}

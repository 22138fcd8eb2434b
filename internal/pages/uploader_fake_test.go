package pages

import (
	"context"

	"github.com/hadefuwa/eblocks-companion-app/internal/arduino"
)

type fakeUploader struct {
	result *arduino.UploadResult
	err    error

	reqs []arduino.UploadRequest
}

func (f *fakeUploader) Upload(_ context.Context, req arduino.UploadRequest) (*arduino.UploadResult, error) {
	f.reqs = append(f.reqs, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

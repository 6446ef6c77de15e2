// Package client defines the contract every vision model backend fulfils.
package client

import (
	"context"

	"github.com/menta2k/img-frameright/pkg/types"
)

// VisionClient is a chat endpoint that accepts one base64 encoded image
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/image-to-html/internal/models"
	"github.com/feichai0017/image-to-html/pkg/logger"
)

// TextractAPI is the subset of the Textract client used here.
type TextractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

type TextractConfig struct {
	Region   string
	Endpoint string
	// Credentials overrides the default AWS chain when set.
	Credentials aws.CredentialsProvider
}

type TextractClient struct {
	api    TextractAPI
	logger logger.Logger
}

func NewTextractClient(ctx context.Context, cfg TextractConfig, log logger.Logger) (*TextractClient, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.Credentials != nil {
		opts = append(opts, config.WithCredentialsProvider(cfg.Credentials))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewTextractClientWithAPI(client, log), nil
}

func NewTextractClientWithAPI(api TextractAPI, log logger.Logger) *TextractClient {
	return &TextractClient{api: api, logger: log.Named("textract")}
}

func (c *TextractClient) Name() string { return "textract" }

// DetectText returns the LINE blocks joined by newlines, in reading order.
func (c *TextractClient) DetectText(ctx context.Context, img *models.UploadedImage) (string, error) {
	data, err := img.Bytes()
	if err != nil {
		return "", err
	}

	out, err := c.api.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
		Document: &types.Document{Bytes: data},
	})
	if err != nil {
		return "", fmt.Errorf("failed to detect document text: %w", err)
	}

	lines := make([]string, 0, len(out.Blocks))
	for _, block := range out.Blocks {
		if block.BlockType == types.BlockTypeLine && block.Text != nil {
			lines = append(lines, *block.Text)
		}
	}

	c.logger.Debug("Textract detection finished",
		logger.Int("blocks", len(out.Blocks)),
		logger.Int("lines", len(lines)),
	)
	return strings.Join(lines, "\n"), nil
}

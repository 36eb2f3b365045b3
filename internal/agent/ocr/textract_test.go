package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/image-to-html/pkg/logger"
)

type fakeTextract struct {
	out   *textract.DetectDocumentTextOutput
	err   error
	input *textract.DetectDocumentTextInput
}

func (f *fakeTextract) DetectDocumentText(_ context.Context, in *textract.DetectDocumentTextInput, _ ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error) {
	f.input = in
	return f.out, f.err
}

func TestTextractJoinsLines(t *testing.T) {
	fake := &fakeTextract{out: &textract.DetectDocumentTextOutput{Blocks: []types.Block{
		{BlockType: types.BlockTypePage},
		{BlockType: types.BlockTypeLine, Text: aws.String("Invoice 42")},
		{BlockType: types.BlockTypeWord, Text: aws.String("Invoice")},
		{BlockType: types.BlockTypeLine, Text: aws.String("Total: 10 EUR")},
	}}}
	c := NewTextractClientWithAPI(fake, logger.NewTestLogger())

	text, err := c.DetectText(context.Background(), pngImage)
	require.NoError(t, err)
	assert.Equal(t, "Invoice 42\nTotal: 10 EUR", text)
	assert.Equal(t, []byte{0, 0, 0}, fake.input.Document.Bytes)
}

func TestTextractEmptyAndErrors(t *testing.T) {
	c := NewTextractClientWithAPI(&fakeTextract{out: &textract.DetectDocumentTextOutput{}}, logger.NewTestLogger())
	text, err := c.DetectText(context.Background(), pngImage)
	require.NoError(t, err)
	assert.Equal(t, "", text)

	boom := errors.New("throttled")
	c = NewTextractClientWithAPI(&fakeTextract{err: boom}, logger.NewTestLogger())
	_, err = c.DetectText(context.Background(), pngImage)
	assert.ErrorIs(t, err, boom)
}

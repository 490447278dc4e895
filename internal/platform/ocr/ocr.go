// Package ocr announces newly uploaded documents to the external OCR worker.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// Job is the queue payload the OCR worker consumes. The worker reports back
// through the document OCR status endpoint.
type Job struct {
	DocumentID  uuid.UUID `json:"document_id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	StoragePath string    `json:"storage_path"`
	MimeType    string    `json:"mime_type"`
	RequestedAt time.Time `json:"requested_at"`
}

type Dispatcher interface {
	Dispatch(ctx context.Context, job Job) error
}

// Eligible reports whether a document of this type goes through OCR.
func Eligible(mimeType string) bool {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	return strings.HasPrefix(mt, "image/") || mt == "application/pdf"
}

type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQSDispatcher struct {
	client   sqsAPI
	queueURL string
}

func NewSQSClient(ctx context.Context, region, endpoint string) (*sqs.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func NewSQSDispatcher(client *sqs.Client, queueURL string) *SQSDispatcher {
	return &SQSDispatcher{client: client, queueURL: queueURL}
}

func (d *SQSDispatcher) Dispatch(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode ocr job: %w", err)
	}
	_, err = d.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(d.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"tenant_id": {DataType: aws.String("String"), StringValue: aws.String(job.TenantID.String())},
		},
	})
	if err != nil {
		return fmt.Errorf("send ocr job %s: %w", job.DocumentID, err)
	}
	return nil
}

// Noop is used when OCR_QUEUE_URL is unset; documents stay pending until
// processed out of band.
type Noop struct{}

func (Noop) Dispatch(context.Context, Job) error { return nil }

// Package notify sends a short run summary when a pipeline run completes.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/osteele/liquid"

	"github.com/ignite/claims-pipeline/internal/claimnorm"
	"github.com/ignite/claims-pipeline/internal/pkg/logger"
)

// DefaultBody is the plain-text summary template.
const DefaultBody = `Claims pipeline run {{ run_id }} finished.

Reference date: {{ as_of }}
Total processed: {{ total }}
{% for s in sources %}  {{ s.name }}: {{ s.count }}
{% endfor %}Flagged for resubmission: {{ flagged }}
Excluded: {{ excluded }}
{% for r in reasons %}  - {{ r.name }}: {{ r.count }}
{% endfor %}
Artifacts:
{% for a in artifacts %}  {{ a }}
{% endfor %}`

// Summary is what a notification reports about a run.
type Summary struct {
	RunID     string
	Result    *claimnorm.Result
	Artifacts []string
}

func (s Summary) bindings() liquid.Bindings {
	m := s.Result.Metrics
	sources := make([]map[string]interface{}, 0, len(claimnorm.Sources))
	for _, src := range claimnorm.Sources {
		sources = append(sources, map[string]interface{}{"name": string(src), "count": m.BySource[src]})
	}
	reasons := make([]map[string]interface{}, 0, len(claimnorm.ExclusionReasons))
	for _, r := range claimnorm.ExclusionReasons {
		reasons = append(reasons, map[string]interface{}{"name": string(r), "count": m.ExcludedByReason[r]})
	}
	return liquid.Bindings{
		"run_id":    s.RunID,
		"as_of":     s.Result.AsOf.Format("2006-01-02"),
		"total":     m.TotalProcessed,
		"flagged":   m.FlaggedForResubmission,
		"excluded":  m.TotalExcluded(),
		"sources":   sources,
		"reasons":   reasons,
		"artifacts": s.Artifacts,
	}
}

// Renderer turns a Summary into subject and body text.
type Renderer struct {
	engine  *liquid.Engine
	subject *liquid.Template
	body    *liquid.Template
}

// NewRenderer parses both templates. An empty body uses DefaultBody.
func NewRenderer(subject, body string) (*Renderer, error) {
	if body == "" {
		body = DefaultBody
	}
	engine := liquid.NewEngine()
	st, err := engine.ParseString(subject)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	bt, err := engine.ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	return &Renderer{engine: engine, subject: st, body: bt}, nil
}

// Render fills both templates from s.
func (r *Renderer) Render(s Summary) (subject, body string, err error) {
	if s.Result == nil || s.Result.Metrics == nil {
		return "", "", fmt.Errorf("summary has no result")
	}
	b := s.bindings()
	subject, serr := r.subject.RenderString(b)
	if serr != nil {
		return "", "", fmt.Errorf("render subject: %w", serr)
	}
	body, berr := r.body.RenderString(b)
	if berr != nil {
		return "", "", fmt.Errorf("render body: %w", berr)
	}
	return strings.TrimSpace(subject), body, nil
}

// EmailAPI is the subset of the SES v2 client used here.
type EmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESNotifier emails the run summary through AWS SES.
type SESNotifier struct {
	client   EmailAPI
	renderer *Renderer
	from     string
	to       []string
}

// SESOptions configures NewSESNotifier. Without static keys the default
// AWS credential chain is used.
type SESOptions struct {
	Region    string
	AccessKey string
	SecretKey string
	From      string
	To        []string
	Subject   string
	Body      string
}

// NewSESNotifier builds an SES client and the summary renderer.
func NewSESNotifier(ctx context.Context, opts SESOptions) (*SESNotifier, error) {
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(opts.Region)}
	if opts.AccessKey != "" && opts.SecretKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config for SES: %w", err)
	}
	return NewSESNotifierWithClient(sesv2.NewFromConfig(cfg), opts)
}

// NewSESNotifierWithClient wires an existing SES client.
func NewSESNotifierWithClient(client EmailAPI, opts SESOptions) (*SESNotifier, error) {
	r, err := NewRenderer(opts.Subject, opts.Body)
	if err != nil {
		return nil, err
	}
	return &SESNotifier{client: client, renderer: r, from: opts.From, to: opts.To}, nil
}

// Notify renders and sends the summary.
func (n *SESNotifier) Notify(ctx context.Context, s Summary) error {
	subject, body, err := n.renderer.Render(s)
	if err != nil {
		return err
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(n.from),
		Destination:      &types.Destination{ToAddresses: n.to},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("run_id"), Value: aws.String(s.RunID)},
		},
	}
	out, err := n.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	logger.Info("run summary sent", "message_id", aws.ToString(out.MessageId), "recipients", len(n.to))
	return nil
}

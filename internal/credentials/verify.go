package credentials

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/google/uuid"
	"github.com/instanti8/engine/internal/cloud"
	appErr "github.com/instanti8/engine/pkg/errors"
	"github.com/instanti8/engine/pkg/logger"
	"go.uber.org/zap"
)

// CallerIdentity is who a stored AWS key pair authenticates as.
type CallerIdentity struct {
	Account string `json:"account"`
	Arn     string `json:"arn"`
	UserID  string `json:"user_id"`
}

// AWSVerifier checks stored AWS keys against STS.
type AWSVerifier struct {
	store Store
	// endpoint overrides the STS endpoint; empty uses the AWS default.
	endpoint string
}

func NewAWSVerifier(store Store, endpoint string) *AWSVerifier {
	return &AWSVerifier{store: store, endpoint: endpoint}
}

func (v *AWSVerifier) Verify(ctx context.Context, ownerID uuid.UUID) (*CallerIdentity, error) {
	b, err := v.store.Get(ctx, ownerID, cloud.AWS)
	if err != nil {
		if appErr.IsCode(err, appErr.CodeNotFound) {
			return nil, appErr.New(appErr.CodeMissingCredentials, "no aws credentials configured")
		}
		return nil, err
	}
	var keys AWSBundle
	if err := b.Decode(&keys); err != nil {
		return nil, err
	}
	if keys.Region == "" {
		keys.Region = defaultAWSRegion
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(keys.Region),
		config.WithCredentialsProvider(awscreds.NewStaticCredentialsProvider(keys.AccessKeyID, keys.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "load aws config failed")
	}
	client := sts.NewFromConfig(cfg, func(o *sts.Options) {
		if v.endpoint != "" {
			o.BaseEndpoint = aws.String(v.endpoint)
		}
	})

	out, err := client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		logger.L().Warn("aws credential verification failed", zap.String("owner_id", ownerID.String()), zap.Error(err))
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "aws credentials were rejected")
	}
	return &CallerIdentity{
		Account: aws.ToString(out.Account),
		Arn:     aws.ToString(out.Arn),
		UserID:  aws.ToString(out.UserId),
	}, nil
}

// Package secrets resolves database credentials from AWS Secrets Manager.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// SecretsAPI is the subset of the Secrets Manager client used.
type SecretsAPI interface {
	GetSecretValue(ctx context.Context, input *secretsmanager.GetSecretValueInput, opts ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// dbSecret is the JSON shape RDS-managed secrets use.
type dbSecret struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"dbname"`
}

// ResolveDSN fetches the secret behind arn and builds a Postgres DSN.
func ResolveDSN(ctx context.Context, arn string) (string, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("loading AWS config: %w", err)
	}
	return ResolveDSNWithClient(ctx, secretsmanager.NewFromConfig(awsCfg), arn)
}

// ResolveDSNWithClient is ResolveDSN with an injected client.
func ResolveDSNWithClient(ctx context.Context, client SecretsAPI, arn string) (string, error) {
	out, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(arn),
	})
	if err != nil {
		return "", fmt.Errorf("fetching secret: %w", err)
	}

	var sec dbSecret
	if err := json.Unmarshal([]byte(aws.ToString(out.SecretString)), &sec); err != nil {
		return "", fmt.Errorf("parsing secret: %w", err)
	}
	if sec.Host == "" || sec.Username == "" {
		return "", fmt.Errorf("secret missing host or username")
	}
	if sec.Port == 0 {
		sec.Port = 5432
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		url.QueryEscape(sec.Username), url.QueryEscape(sec.Password),
		sec.Host, sec.Port, sec.Database), nil
}

package config

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// RedisSecret represents the structure of the secret stored in AWS Secrets Manager.
type RedisSecret struct {
	Password string `json:"password"`
}

// SecretValueAPI is the subset of the Secrets Manager client in use.
type SecretValueAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsManagerClient wraps AWS Secrets Manager operations.
type SecretsManagerClient struct {
	client SecretValueAPI
}

// NewSecretsManagerClient creates a new Secrets Manager client.
// It loads AWS credentials from the default chain (Lambda role locally or in AWS).
func NewSecretsManagerClient(ctx context.Context) (*SecretsManagerClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SecretsManagerClient{
		client: secretsmanager.NewFromConfig(cfg),
	}, nil
}

// NewSecretsManagerClientWithAPI builds a client over an existing API implementation.
func NewSecretsManagerClientWithAPI(api SecretValueAPI) *SecretsManagerClient {
	return &SecretsManagerClient{client: api}
}

// GetRedisSecret fetches and parses the Redis credentials.
func (c *SecretsManagerClient) GetRedisSecret(ctx context.Context, secretName string) (*RedisSecret, error) {
	if secretName == "" {
		return nil, fmt.Errorf("secret name is empty")
	}

	output, err := c.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch secret %q from secrets manager: %w", secretName, err)
	}

	if output.SecretString == nil {
		return nil, fmt.Errorf("secret %q has no string value (binary secrets not supported)", secretName)
	}

	var secret RedisSecret
	if err := json.Unmarshal([]byte(*output.SecretString), &secret); err != nil {
		return nil, fmt.Errorf("parse secret %q as JSON: %w", secretName, err)
	}

	if secret.Password == "" {
		return nil, fmt.Errorf("secret %q missing required field: password", secretName)
	}

	return &secret, nil
}

// ApplySecrets resolves configured secrets into the config.
func (c *AppConfig) ApplySecrets(ctx context.Context, sm *SecretsManagerClient) error {
	if c.Secrets.RedisSecretName == "" {
		return nil
	}
	secret, err := sm.GetRedisSecret(ctx, c.Secrets.RedisSecretName)
	if err != nil {
		return err
	}
	c.Redis.Password = secret.Password
	return nil
}

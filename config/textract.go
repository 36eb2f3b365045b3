package config

// TextractConfig holds the AWS settings for the textract OCR provider.
// Credentials fall back to the default AWS chain when AccessKey is empty.
type TextractConfig struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

// HasStaticCredentials reports whether explicit keys were configured.
func (c TextractConfig) HasStaticCredentials() bool {
	return c.AccessKey != "" && c.SecretKey != ""
}

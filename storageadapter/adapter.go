package storageadapter

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/busmesh/testorch/domain"
	"github.com/busmesh/testorch/infrastructure/errors"
)

const (
	featuresDir  = "features"
	evidenceDir  = "evidence"
	directiveDoc = "topic-directive"
)

// ProviderFactory resolves a BucketRef to a live Provider. Production
// wiring dispatches purely on ref.Scheme; tests substitute a fixed
// LocalProvider regardless of scheme.
type ProviderFactory func(ctx context.Context, ref BucketRef) (Provider, error)

// Adapter implements the object-store contract: fetch a test bundle into a
// scratch directory, upload evidence back, and clean up afterward.
type Adapter struct {
	scratchRoot string
	newProvider ProviderFactory
}

// NewAdapter roots scratch directories under scratchRoot and dispatches
// provider construction through newProvider.
func NewAdapter(scratchRoot string, newProvider ProviderFactory) *Adapter {
	return &Adapter{scratchRoot: scratchRoot, newProvider: newProvider}
}

// azureStorageAccountURLEnv names the Azure Storage account endpoint
// (e.g. "https://<account>.blob.core.windows.net") DefaultProviderFactory
// resolves "azure://" against — the bucket URI only carries the container.
const azureStorageAccountURLEnv = "AZURE_STORAGE_ACCOUNT_URL"

// DefaultProviderFactory dispatches purely on BucketRef.Scheme, the
// "inheritance as a single interface" redesign applied literally.
func DefaultProviderFactory(ctx context.Context, ref BucketRef) (Provider, error) {
	switch ref.Scheme {
	case "local":
		return NewLocalProvider(os.TempDir(), ref.Bucket), nil
	case "s3":
		return NewS3Provider(ctx, ref.Bucket)
	case "azure":
		accountURL := strings.TrimSpace(os.Getenv(azureStorageAccountURLEnv))
		if accountURL == "" {
			return nil, errors.InvalidConfiguration(azureStorageAccountURLEnv + " must be set to resolve azure:// bucket URIs")
		}
		return NewAzureProvider(accountURL, ref.Bucket)
	case "gs":
		return NewGCSProvider(ctx, ref.Bucket)
	default:
		return nil, errors.InvalidBucketURI(ref.Scheme+"://"+ref.Bucket, errUnknownScheme)
	}
}

func (a *Adapter) scratchPath(testID domain.TestId) string {
	return filepath.Join(a.scratchRoot, string(testID))
}

// Fetch copies every blob under bucketURI into a fresh scratch directory
// and returns the resulting StorageDirective. The scratch tree is deleted
// if any step fails.
func (a *Adapter) Fetch(ctx context.Context, testID domain.TestId, bucketURI string) (domain.StorageDirective, error) {
	ref, err := ParseBucketURI(bucketURI)
	if err != nil {
		return domain.StorageDirective{}, err
	}
	provider, err := a.newProvider(ctx, ref)
	if err != nil {
		return domain.StorageDirective{}, err
	}

	root := a.scratchPath(testID)
	if err := a.materialize(ctx, provider, ref.Prefix, root); err != nil {
		_ = a.Cleanup(testID)
		return domain.StorageDirective{}, err
	}

	dir, err := a.buildDirective(root, bucketURI)
	if err != nil {
		_ = a.Cleanup(testID)
		return domain.StorageDirective{}, err
	}
	return dir, nil
}

func (a *Adapter) materialize(ctx context.Context, provider Provider, prefix, root string) error {
	keys, err := provider.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, key := range keys {
		rel := strings.TrimPrefix(strings.TrimPrefix(key, prefix), "/")
		if rel == "" {
			continue
		}
		if err := a.copyOne(ctx, provider, key, filepath.Join(root, rel)); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Join(root, evidenceDir), 0o755); err != nil {
		return errors.StreamingFailure(root, evidenceDir, err)
	}
	return nil
}

func (a *Adapter) copyOne(ctx context.Context, provider Provider, key, dst string) error {
	src, err := provider.Open(ctx, key)
	if err != nil {
		return err
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.StreamingFailure(key, dst, err)
	}
	f, err := os.Create(dst)
	if err != nil {
		return errors.StreamingFailure(key, dst, err)
	}
	defer f.Close()
	if _, err := io.Copy(f, src); err != nil {
		return errors.StreamingFailure(key, dst, err)
	}
	return nil
}

// buildDirective validates the fetched tree's shape and parses the topic
// directive document, per the fetch contract.
func (a *Adapter) buildDirective(root, bucketURI string) (domain.StorageDirective, error) {
	featuresPath := filepath.Join(root, featuresDir)
	entries, err := os.ReadDir(featuresPath)
	if err != nil {
		return domain.StorageDirective{}, errors.MissingFeaturesDirectory(featuresPath)
	}
	hasFeature := false
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".feature") {
			hasFeature = true
			break
		}
	}
	if !hasFeature {
		return domain.StorageDirective{}, errors.EmptyFeaturesDirectory(featuresPath)
	}

	directivePath, found := findDirectiveFile(root)
	if !found {
		return domain.StorageDirective{}, errors.MissingTopicDirectiveFile(root)
	}
	topicDirectives, err := parseTopicDirectives(directivePath)
	if err != nil {
		return domain.StorageDirective{}, err
	}
	if err := validateDirectiveSet(topicDirectives); err != nil {
		return domain.StorageDirective{}, err
	}

	return domain.StorageDirective{
		AssetRoot:       root,
		EvidenceRoot:    filepath.Join(root, evidenceDir),
		TopicDirectives: topicDirectives,
		BucketRef:       bucketURI,
	}, nil
}

func findDirectiveFile(root string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		candidate := filepath.Join(root, directiveDoc+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

func parseTopicDirectives(path string) ([]domain.TopicDirective, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.MissingTopicDirectiveFile(path)
	}
	var wrapper struct {
		Topics []domain.TopicDirective `yaml:"topics" json:"topics"`
	}
	if err := yaml.Unmarshal(raw, &wrapper); err != nil {
		return nil, errors.InvalidTopicDirective(path, err.Error())
	}
	return wrapper.Topics, nil
}

var bootstrapPattern = regexp.MustCompile(`^[^:,\s]+:\d+(,[^:,\s]+:\d+)*$`)

func validateDirectiveSet(directives []domain.TopicDirective) error {
	seen := make(map[string]struct{}, len(directives))
	for _, d := range directives {
		key := d.Key()
		if _, dup := seen[key]; dup {
			return errors.DuplicateTopic(d.Topic)
		}
		seen[key] = struct{}{}

		if d.BootstrapOverride == "" {
			continue
		}
		if !bootstrapPattern.MatchString(d.BootstrapOverride) {
			return errors.InvalidBootstrapServers(d.BootstrapOverride)
		}
		for _, hostport := range strings.Split(d.BootstrapOverride, ",") {
			_, portStr, _ := strings.Cut(hostport, ":")
			port, err := strconv.Atoi(portStr)
			if err != nil || port < 1 || port > 65535 {
				return errors.InvalidBootstrapServers(d.BootstrapOverride)
			}
		}
	}
	return nil
}

// Upload writes every regular file under evidenceRoot to bucketURI under an
// "evidence/" prefix, preserving relative paths.
func (a *Adapter) Upload(ctx context.Context, testID domain.TestId, bucketURI, evidenceRoot string) error {
	ref, err := ParseBucketURI(bucketURI)
	if err != nil {
		return err
	}
	provider, err := a.newProvider(ctx, ref)
	if err != nil {
		return err
	}

	walkErr := filepath.WalkDir(evidenceRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(evidenceRoot, path)
		if relErr != nil {
			return relErr
		}
		f, openErr := os.Open(path)
		if openErr != nil {
			return openErr
		}
		defer f.Close()
		key := evidenceDir + "/" + filepath.ToSlash(rel)
		if ref.Prefix != "" {
			key = ref.Prefix + "/" + key
		}
		return provider.Put(ctx, key, f, "")
	})
	if walkErr != nil {
		_ = a.Cleanup(testID)
		return errors.StreamingFailure(bucketURI, evidenceRoot, walkErr)
	}
	return nil
}

// Cleanup idempotently removes the scratch tree for testID.
func (a *Adapter) Cleanup(testID domain.TestId) error {
	if err := os.RemoveAll(a.scratchPath(testID)); err != nil {
		return errors.StreamingFailure(string(testID), a.scratchPath(testID), err)
	}
	return nil
}

package storageadapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/busmesh/testorch/domain"
)

func TestValidateDirectiveSet_DuplicateTopicRole(t *testing.T) {
	directives := []domain.TopicDirective{
		{Topic: "orders", Role: domain.RoleProducer},
		{Topic: "orders", Role: domain.RoleProducer},
	}
	if err := validateDirectiveSet(directives); err == nil {
		t.Fatalf("expected duplicate topic error")
	}
}

func TestValidateDirectiveSet_SameTopicDifferentRoleAllowed(t *testing.T) {
	directives := []domain.TopicDirective{
		{Topic: "orders", Role: domain.RoleProducer},
		{Topic: "orders", Role: domain.RoleConsumer},
	}
	if err := validateDirectiveSet(directives); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDirectiveSet_BootstrapOverride(t *testing.T) {
	good := []domain.TopicDirective{
		{Topic: "orders", Role: domain.RoleProducer, BootstrapOverride: "broker1:9092,broker2:9093"},
	}
	if err := validateDirectiveSet(good); err != nil {
		t.Fatalf("unexpected error for valid bootstrap list: %v", err)
	}

	bad := []domain.TopicDirective{
		{Topic: "orders", Role: domain.RoleProducer, BootstrapOverride: "broker1:notaport"},
	}
	if err := validateDirectiveSet(bad); err == nil {
		t.Fatalf("expected error for invalid port")
	}

	outOfRange := []domain.TopicDirective{
		{Topic: "orders", Role: domain.RoleProducer, BootstrapOverride: "broker1:70000"},
	}
	if err := validateDirectiveSet(outOfRange); err == nil {
		t.Fatalf("expected error for out-of-range port")
	}
}

func TestAdapter_FetchAndUpload_Local(t *testing.T) {
	scratch := t.TempDir()
	bucketDir := t.TempDir()

	mustWrite(t, filepath.Join(bucketDir, "bucket", "tests/t-1/features/orders.feature"), "Feature: orders\n")
	mustWrite(t, filepath.Join(bucketDir, "bucket", "tests/t-1/topic-directive.yaml"), "topics:\n  - topic: orders\n    role: producer\n")

	newProvider := func(ctx context.Context, ref BucketRef) (Provider, error) {
		return NewLocalProvider(bucketDir, ref.Bucket), nil
	}
	adapter := NewAdapter(scratch, newProvider)

	testID := domain.NewTestId()
	dir, err := adapter.Fetch(context.Background(), testID, "local://bucket/tests/t-1")
	if err != nil {
		t.Fatalf("unexpected fetch error: %v", err)
	}
	if len(dir.TopicDirectives) != 1 || dir.TopicDirectives[0].Topic != "orders" {
		t.Fatalf("got directives %+v", dir.TopicDirectives)
	}

	mustWrite(t, filepath.Join(dir.EvidenceRoot, "report.json"), `{"passed":true}`)
	if err := adapter.Upload(context.Background(), testID, "local://bucket/tests/t-1", dir.EvidenceRoot); err != nil {
		t.Fatalf("unexpected upload error: %v", err)
	}

	uploaded := filepath.Join(bucketDir, "bucket", "tests/t-1", "evidence", "report.json")
	if _, err := os.Stat(uploaded); err != nil {
		t.Fatalf("expected uploaded evidence at %s: %v", uploaded, err)
	}

	if err := adapter.Cleanup(testID); err != nil {
		t.Fatalf("unexpected cleanup error: %v", err)
	}
	if _, err := os.Stat(dir.AssetRoot); !os.IsNotExist(err) {
		t.Fatalf("expected scratch root removed, got err=%v", err)
	}
}

func TestDefaultProviderFactory_AzureRequiresAccountURL(t *testing.T) {
	os.Unsetenv(azureStorageAccountURLEnv)

	_, err := DefaultProviderFactory(context.Background(), BucketRef{Scheme: "azure", Bucket: "my-container"})
	if err == nil {
		t.Fatalf("expected error when %s is unset", azureStorageAccountURLEnv)
	}
}

func TestAdapter_Fetch_MissingFeaturesDirectory(t *testing.T) {
	scratch := t.TempDir()
	bucketDir := t.TempDir()
	mustWrite(t, filepath.Join(bucketDir, "bucket", "tests/t-2", "topic-directive.yaml"), "topics: []\n")

	newProvider := func(ctx context.Context, ref BucketRef) (Provider, error) {
		return NewLocalProvider(bucketDir, ref.Bucket), nil
	}
	adapter := NewAdapter(scratch, newProvider)

	_, err := adapter.Fetch(context.Background(), domain.NewTestId(), "local://bucket/tests/t-2")
	if err == nil {
		t.Fatalf("expected missing features directory error")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

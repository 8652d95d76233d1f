package s3

import "testing"

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

func TestNewClientToleratesSchemePrefix(t *testing.T) {
	cases := []string{
		"localhost:9000",
		"http://localhost:9000",
		"https://storage.example.com/",
	}
	for _, endpoint := range cases {
		client, err := NewClient(Config{
			Endpoint:  endpoint,
			AccessKey: "minio",
			SecretKey: "minio123",
		})
		if err != nil {
			t.Fatalf("endpoint %q: %v", endpoint, err)
		}
		if client == nil {
			t.Fatalf("endpoint %q: nil client", endpoint)
		}
	}
}

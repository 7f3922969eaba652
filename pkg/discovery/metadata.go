package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// MetadataEnvVar is the environment variable whose presence gates whether
// the cluster-metadata collaborator is enabled at all (spec §6). It follows
// the ECS container agent's own naming for the task metadata endpoint.
const MetadataEnvVar = "ECS_CONTAINER_METADATA_URI_V4"

// LocalMetadata is what the registrar (C6) needs to know about the local
// process before it may register itself (spec §4.6, §6).
type LocalMetadata struct {
	ClusterID   string
	TaskID      string
	ServiceName string
	Host        string
	Port        int
	Lane        string
}

// Complete reports whether every field the registrar requires is present,
// including a non-blank lane (spec §4.6 precondition).
func (m LocalMetadata) Complete() bool {
	return m.ClusterID != "" && m.TaskID != "" && m.ServiceName != "" &&
		m.Host != "" && m.Port != 0 && strings.TrimSpace(m.Lane) != ""
}

// MetadataSource is the external collaborator C6 reads local process
// metadata from (spec §6).
type MetadataSource interface {
	ReadLocal(ctx context.Context) (LocalMetadata, error)
}

// ECSMetadataSource reads LocalMetadata from the ECS task metadata endpoint
// (v4), when MetadataEnvVar is set — this is the only first-class metadata
// collaborator this package ships, matching spec §6's "enabled only when a
// ECS_CONTAINER_METADATA_URI_V4-style variable is present" framing. The lane
// is read from the task's own environment, since Cloud Map has no concept of
// "lane" — it's a convention this library's caller establishes via task
// environment or container labels.
type ECSMetadataSource struct {
	httpClient *http.Client
	baseURI    string
	laneEnvVar string
	portEnvVar string
}

// NewECSMetadataSource builds an ECSMetadataSource reading the endpoint URI
// from MetadataEnvVar, the lane from laneEnvVar and the advertised port from
// portEnvVar. It returns (nil, false) if MetadataEnvVar is unset, so C6 can
// disable itself cleanly with no side effects (spec §6).
func NewECSMetadataSource(laneEnvVar, portEnvVar string) (*ECSMetadataSource, bool) {
	uri := os.Getenv(MetadataEnvVar)
	if uri == "" {
		return nil, false
	}
	return &ECSMetadataSource{
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURI:    uri,
		laneEnvVar: laneEnvVar,
		portEnvVar: portEnvVar,
	}, true
}

// ecsTaskMetadata mirrors the subset of the ECS task metadata v4 "task"
// response this library needs.
type ecsTaskMetadata struct {
	Cluster string `json:"Cluster"`
	TaskARN string `json:"TaskARN"`
	Containers []struct {
		Networks []struct {
			IPv4Addresses []string `json:"IPv4Addresses"`
		} `json:"Networks"`
	} `json:"Containers"`
}

func (s *ECSMetadataSource) ReadLocal(ctx context.Context) (LocalMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURI+"/task", nil)
	if err != nil {
		return LocalMetadata{}, fmt.Errorf("building ECS metadata request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return LocalMetadata{}, fmt.Errorf("fetching ECS task metadata: %w", err)
	}
	defer resp.Body.Close()

	var meta ecsTaskMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return LocalMetadata{}, fmt.Errorf("decoding ECS task metadata: %w", err)
	}

	host := ""
	for _, c := range meta.Containers {
		for _, n := range c.Networks {
			if len(n.IPv4Addresses) > 0 {
				host = n.IPv4Addresses[0]
			}
		}
	}

	port := 0
	if v := os.Getenv(s.portEnvVar); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			port = p
		}
	}

	return LocalMetadata{
		ClusterID:   meta.Cluster,
		TaskID:      meta.TaskARN,
		ServiceName: os.Getenv("ECS_SERVICE_NAME"),
		Host:        host,
		Port:        port,
		Lane:        os.Getenv(s.laneEnvVar),
	}, nil
}

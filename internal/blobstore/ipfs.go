package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/opentdf/ctivault/pkg/cti"
)

const (
	defaultClusterEndpoint = "http://127.0.0.1:9094"
	defaultGatewayEndpoint = "http://127.0.0.1:8080"
	defaultTimeout         = 30 * time.Second

	addPath     = "/add"
	gatewayPath = "/ipfs/"
)

// IPFSClient uploads envelopes through an IPFS cluster (or node) add endpoint
// and reads them back through a gateway.
type IPFSClient struct {
	*http.Client
	ClusterEndpoint *url.URL
	GatewayEndpoint *url.URL
	RequestTimeout  time.Duration
}

type IPFSClientOptions struct {
	HttpClient      *http.Client
	ClusterEndpoint *url.URL
	GatewayEndpoint *url.URL
	Timeout         time.Duration
}

// addResponse covers both cluster ("cid", string or {"/": ...}) and node
// ("Hash") upload responses.
type addResponse struct {
	CID  json.RawMessage `json:"cid"`
	Hash string          `json:"Hash"`
}

func NewIPFSClient(ops ...IPFSClientOptions) (*IPFSClient, error) {
	client := &IPFSClient{}
	if len(ops) > 0 {
		client.Client = ops[0].HttpClient
		if ops[0].ClusterEndpoint != nil && ops[0].ClusterEndpoint.String() != "" {
			client.ClusterEndpoint = ops[0].ClusterEndpoint
		}
		if ops[0].GatewayEndpoint != nil && ops[0].GatewayEndpoint.String() != "" {
			client.GatewayEndpoint = ops[0].GatewayEndpoint
		}
		client.RequestTimeout = ops[0].Timeout
	}
	if err := ipfsClientDefaults(client); err != nil {
		return nil, err
	}
	return client, nil
}

func ipfsClientDefaults(client *IPFSClient) error {
	var err error
	if client.Client == nil {
		client.Client = http.DefaultClient
	}
	if client.ClusterEndpoint == nil {
		if client.ClusterEndpoint, err = url.Parse(defaultClusterEndpoint); err != nil {
			return err
		}
	}
	if client.GatewayEndpoint == nil {
		if client.GatewayEndpoint, err = url.Parse(defaultGatewayEndpoint); err != nil {
			return err
		}
	}
	if client.RequestTimeout == 0 {
		client.RequestTimeout = defaultTimeout
	}
	return nil
}

func (c *IPFSClient) Put(ctx context.Context, data []byte) (string, error) {
	const op = "ipfs put"
	ctx, cancel := context.WithTimeout(ctx, c.RequestTimeout)
	defer cancel()

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", "artifact.enc")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	endpoint := strings.TrimSuffix(c.ClusterEndpoint.String(), "/") + addPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.Do(req)
	if err != nil {
		return "", cti.Classify(op, err, cti.KindTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(op, resp)
	}

	id, err := decodeAddResponse(resp.Body)
	if err != nil {
		return "", cti.Classify(op, err, cti.KindResponseFormat)
	}
	if _, err := decodeCID(op, id); err != nil {
		return "", err
	}
	return id, nil
}

func (c *IPFSClient) Get(ctx context.Context, id string) ([]byte, error) {
	const op = "ipfs get"
	if _, err := decodeCID(op, id); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, c.RequestTimeout)
	defer cancel()

	endpoint := strings.TrimSuffix(c.GatewayEndpoint.String(), "/") + gatewayPath + id
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, cti.Classify(op, err, cti.KindTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cti.Classify(op, err, cti.KindTransient)
	}
	return data, nil
}

// decodeAddResponse reads every JSON object in the body and keeps the last
// identifier seen; progress lines carry none.
func decodeAddResponse(r io.Reader) (string, error) {
	var id string
	dec := json.NewDecoder(r)
	for {
		var ar addResponse
		err := dec.Decode(&ar)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		if got, err := ar.id(); err != nil {
			return "", err
		} else if got != "" {
			id = got
		}
	}
	if id == "" {
		return "", errors.New("upload response has neither cid nor Hash")
	}
	return id, nil
}

func (ar addResponse) id() (string, error) {
	if len(ar.CID) > 0 && string(ar.CID) != "null" {
		var s string
		if err := json.Unmarshal(ar.CID, &s); err == nil {
			return s, nil
		}
		var link map[string]string
		if err := json.Unmarshal(ar.CID, &link); err != nil {
			return "", fmt.Errorf("unexpected cid field %s", string(ar.CID))
		}
		return link["/"], nil
	}
	return ar.Hash, nil
}

func statusError(op string, resp *http.Response) error {
	errBody, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return cti.Classify(op, err, cti.KindTransient)
	}
	return cti.Errorf(cti.StatusKind(resp.StatusCode), op, "status code: %d body: %s", resp.StatusCode, string(errBody))
}

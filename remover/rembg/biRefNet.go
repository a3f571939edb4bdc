package rembg

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"

	"github.com/chaos-io/cutout/util"
	nhttp "github.com/chaos-io/cutout/util/http"
)

const (
	BiRefNetModel = "BiRefNet"

	DefaultComfyUIURL   = "http://127.0.0.1:8188/"
	defaultMaxSize      = 1024
	defaultPollInterval = 500 * time.Millisecond

	uploadPath  = "api/upload/image"
	promptPath  = "api/prompt"
	historyPath = "api/history/"
	viewPath    = "api/view"
)

//go:embed workflow.json
var workflowData []byte

// BiRefNetRemBG runs the BiRefNet matting model through a ComfyUI server.
// The model sees a copy scaled down to maxSize; its alpha is scaled back and
// applied to the original pixels, so the output keeps the input's size.
type BiRefNetRemBG struct {
	baseURL      string
	cli          nhttp.IClient
	maxSize      int
	pollInterval time.Duration
	clientID     string
}

func NewBiRefNetRemBG(baseURL string) *BiRefNetRemBG {
	if baseURL == "" {
		baseURL = DefaultComfyUIURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &BiRefNetRemBG{
		baseURL:      baseURL,
		cli:          nhttp.NewHTTPClient(),
		maxSize:      defaultMaxSize,
		pollInterval: defaultPollInterval,
		clientID:     ksuid.New().String(),
	}
}

func (b *BiRefNetRemBG) Remove(ctx context.Context, img image.Image) (image.Image, error) {
	defer util.Trace(BiRefNetModel + " remove")()

	src := imaging.Clone(img)
	input := resizeWithinMax(src, b.maxSize)

	name, err := b.uploadImage(ctx, input)
	if err != nil {
		return nil, err
	}

	promptID, err := b.prompt(ctx, name)
	if err != nil {
		return nil, err
	}

	out, err := b.waitOutput(ctx, promptID)
	if err != nil {
		return nil, err
	}

	mask, err := b.view(ctx, out)
	if err != nil {
		return nil, err
	}

	return applyMask(src, mask), nil
}

type uploadImageResp struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

/*
	curl -X POST "$BASE_URL/api/upload/image" \
	  -F "image=@my_image.png" \
	  -F "type=input" \
	  -F "overwrite=true"

{"name": "my_image1.png", "subfolder": "", "type": "input"}%
*/
func (b *BiRefNetRemBG) uploadImage(ctx context.Context, img image.Image) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", ksuid.New().String()+".png")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if err := png.Encode(part, img); err != nil {
		return "", fmt.Errorf("encode form file: %w", err)
	}

	_ = writer.WriteField("type", "input")
	_ = writer.WriteField("overwrite", "true")
	_ = writer.Close()

	resp := &uploadImageResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + uploadPath,
		Method:     "POST",
		Header:     map[string]string{"Content-Type": writer.FormDataContentType()},
		Body:       body,
		Response:   resp,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return "", fmt.Errorf("upload image: %w", err)
	}
	if resp.Name == "" {
		return "", errors.New("upload image: empty name in response")
	}

	log.Debug().Interface("response", resp).Msg("image uploaded")

	if resp.Subfolder != "" {
		return resp.Subfolder + "/" + resp.Name, nil
	}
	return resp.Name, nil
}

type promptResp struct {
	PromptID   string         `json:"prompt_id"`
	Number     int            `json:"number"`
	NodeErrors map[string]any `json:"node_errors"`
}

/*
	curl -X POST "$BASE_URL/api/prompt" \
	  -H "Content-Type: application/json" \
	  -d '{"prompt": '"$(cat workflow.json)"'}'
*/
func (b *BiRefNetRemBG) prompt(ctx context.Context, imageName string) (string, error) {
	wk := map[string]map[string]any{}
	if err := json.Unmarshal(workflowData, &wk); err != nil {
		return "", fmt.Errorf("unmarshal workflow data: %w", err)
	}

	loaded := false
	for _, node := range wk {
		if node["class_type"] != "LoadImage" {
			continue
		}
		inputs, ok := node["inputs"].(map[string]any)
		if !ok {
			return "", errors.New("workflow LoadImage node has no inputs")
		}
		inputs["image"] = imageName
		loaded = true
	}
	if !loaded {
		return "", errors.New("workflow has no LoadImage node")
	}

	resp := &promptResp{}
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + promptPath,
		Method:     "POST",
		Body:       map[string]any{"prompt": wk, "client_id": b.clientID},
		Response:   resp,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return "", fmt.Errorf("queue prompt: %w", err)
	}
	if len(resp.NodeErrors) > 0 {
		return "", fmt.Errorf("queue prompt: node errors %v", resp.NodeErrors)
	}
	if resp.PromptID == "" {
		return "", errors.New("queue prompt: empty prompt id")
	}

	log.Debug().Str("prompt_id", resp.PromptID).Int("number", resp.Number).Msg("prompt queued")
	return resp.PromptID, nil
}

type outputImage struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type historyEntry struct {
	Status struct {
		StatusStr string `json:"status_str"`
		Completed bool   `json:"completed"`
	} `json:"status"`
	Outputs map[string]struct {
		Images []outputImage `json:"images"`
	} `json:"outputs"`
}

// waitOutput polls the prompt history until the prompt finished. ComfyUI
// returns {} for prompts that are still queued or running.
func (b *BiRefNetRemBG) waitOutput(ctx context.Context, promptID string) (outputImage, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		history := map[string]historyEntry{}
		reqParam := &nhttp.RequestParam{
			RequestURI: b.baseURL + historyPath + url.PathEscape(promptID),
			Method:     "GET",
			Response:   &history,
		}
		if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
			return outputImage{}, fmt.Errorf("get history: %w", err)
		}

		if entry, ok := history[promptID]; ok {
			if entry.Status.StatusStr == "error" {
				return outputImage{}, fmt.Errorf("prompt %s failed", promptID)
			}
			if out, found := firstOutput(entry); found {
				return out, nil
			}
			if entry.Status.Completed {
				return outputImage{}, fmt.Errorf("prompt %s produced no image", promptID)
			}
		}

		select {
		case <-ctx.Done():
			return outputImage{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func firstOutput(entry historyEntry) (outputImage, bool) {
	nodes := make([]string, 0, len(entry.Outputs))
	for id := range entry.Outputs {
		nodes = append(nodes, id)
	}
	sort.Strings(nodes)

	for _, id := range nodes {
		if images := entry.Outputs[id].Images; len(images) > 0 {
			return images[0], true
		}
	}
	return outputImage{}, false
}

func (b *BiRefNetRemBG) view(ctx context.Context, out outputImage) (image.Image, error) {
	q := url.Values{}
	q.Set("filename", out.Filename)
	q.Set("subfolder", out.Subfolder)
	q.Set("type", out.Type)

	var data []byte
	reqParam := &nhttp.RequestParam{
		RequestURI: b.baseURL + viewPath + "?" + q.Encode(),
		Method:     "GET",
		Response:   &data,
	}
	if err := b.cli.DoHTTPRequest(ctx, reqParam); err != nil {
		return nil, fmt.Errorf("view output: %w", err)
	}

	img, err := util.DecodeImage(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode output: %w", err)
	}
	return img, nil
}

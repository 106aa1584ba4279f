package client

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/cpu/acmeclient/acme"
	"github.com/cpu/acmeclient/acme/resources"
)

// Directory returns the ACME server's directory resource deserialized as
// a map from resource name to endpoint URL, fetching it from the server the
// first time it is needed.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
func (c *Client) Directory() (map[string]string, error) {
	c.dirMu.Lock()
	defer c.dirMu.Unlock()

	if c.directory == nil {
		newDir, err := c.getDirectory()
		if err != nil {
			return nil, err
		}
		c.directory = newDir
		log.Printf("Updated directory")
	}

	return c.directory, nil
}

// ResolveURL resolves a directory resource name (e.g. "newOrder") to its
// endpoint URL. Inputs that are already absolute http:// or https:// URLs
// are returned unchanged without touching the network. An unknown resource
// name fails with an error naming the resource.
//
// The directory is fetched at most once per Client: a server that rotates an
// endpoint mid-session will not be noticed. This staleness is a documented
// limitation, not a bug.
func (c *Client) ResolveURL(resource string) (string, error) {
	if strings.HasPrefix(resource, "http://") || strings.HasPrefix(resource, "https://") {
		return resource, nil
	}

	dir, err := c.Directory()
	if err != nil {
		return "", err
	}

	endpointURL, ok := dir[resource]
	if !ok {
		return "", acme.NewError(
			fmt.Sprintf("resource %q not found in directory", resource))
	}
	return endpointURL, nil
}

// getDirectory fetches and decodes the directory resource from the
// configured directory URL. A non-200 response carrying a problem document
// produces an error with the problem's type as its machine code; an empty
// directory object is itself an error.
func (c *Client) getDirectory() (map[string]string, error) {
	dirURL := c.DirectoryURL.String()

	resp, err := c.net.GetURL(dirURL)
	if err != nil {
		return nil, acme.NewTransportError(dirURL, err)
	}
	c.saveNonce(resp.Response)

	if resp.Response.StatusCode != http.StatusOK {
		if prob := resources.ProblemFromBody(resp.RespBody); prob != nil {
			return nil, &acme.Error{
				Code:       prob.Type,
				StatusCode: resp.Response.StatusCode,
				URL:        dirURL,
				Detail:     fmt.Sprintf("Invalid directory response: %s", prob.Detail),
			}
		}
		return nil, &acme.Error{
			StatusCode: resp.Response.StatusCode,
			URL:        dirURL,
			Detail: fmt.Sprintf("Invalid directory response: status %d",
				resp.Response.StatusCode),
		}
	}

	var rawDir map[string]interface{}
	if err := json.Unmarshal(resp.RespBody, &rawDir); err != nil {
		return nil, &acme.Error{
			URL:    dirURL,
			Detail: fmt.Sprintf("Invalid directory response: %s", err),
		}
	}

	directory := map[string]string{}
	for name, rawURL := range rawDir {
		if endpointURL, ok := rawURL.(string); ok && endpointURL != "" {
			directory[name] = endpointURL
		}
	}
	if len(directory) == 0 {
		return nil, &acme.Error{
			URL:    dirURL,
			Detail: "Invalid directory response: empty directory",
		}
	}

	return directory, nil
}

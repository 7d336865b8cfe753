// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package maas is a small client for the parts of the MAAS 2.0 REST API
// that describe machine storage, VLANs and boot image sources.
package maas

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/juju/errors"
	"github.com/juju/gomaasapi/v2"
	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("maasng.maas")

// APIVersion is the MAAS API version this client speaks.
const APIVersion = "2.0"

// ClientConfig holds what is needed to talk to a MAAS region controller.
type ClientConfig struct {
	// Server is the MAAS URL, e.g. "http://maas.example.com:5240/MAAS".
	Server string
	// APIKey is the "consumer:token:secret" key of a MAAS user.
	APIKey string
}

// Validate checks the config.
func (cfg ClientConfig) Validate() error {
	if cfg.Server == "" {
		return errors.NotValidf("empty Server")
	}
	if _, err := url.Parse(cfg.Server); err != nil {
		return errors.NotValidf("Server %q", cfg.Server)
	}
	if cfg.APIKey == "" {
		return errors.NotValidf("empty APIKey")
	}
	return nil
}

// Client talks to MAAS. Calls are issued one at a time; nothing is
// retried or cached between calls.
type Client struct {
	maas *gomaasapi.MAASObject
}

// NewClient returns a Client authenticated with cfg.APIKey.
func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	authClient, err := gomaasapi.NewAuthenticatedClient(
		gomaasapi.AddAPIVersionToURL(cfg.Server, APIVersion), cfg.APIKey,
	)
	if err != nil {
		return nil, errors.Annotate(err, "connecting to MAAS")
	}
	return &Client{maas: gomaasapi.NewMAAS(*authClient)}, nil
}

// object returns the resource at the given path below the API root,
// failing if ctx is already done.
func (c *Client) object(ctx context.Context, format string, args ...interface{}) (gomaasapi.MAASObject, error) {
	if err := ctx.Err(); err != nil {
		return gomaasapi.MAASObject{}, errors.Trace(err)
	}
	return c.maas.GetSubObject(fmt.Sprintf(format, args...)), nil
}

// decode turns a gomaasapi result back into plain JSON values so that
// it can be checked with juju/schema.
func decode(result gomaasapi.JSONObject) (interface{}, error) {
	raw, err := result.MarshalJSON()
	if err != nil {
		return nil, errors.Trace(err)
	}
	var source interface{}
	if err := json.Unmarshal(raw, &source); err != nil {
		return nil, errors.Annotate(err, "parsing MAAS response")
	}
	return source, nil
}

// callError converts gomaasapi server errors into juju error types.
func callError(err error, what string) error {
	if err == nil {
		return nil
	}
	if serverErr, ok := errors.Cause(err).(gomaasapi.ServerError); ok {
		switch serverErr.StatusCode {
		case http.StatusNotFound:
			return errors.NewNotFound(err, what)
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.NewUnauthorized(err, what)
		case http.StatusBadRequest, http.StatusConflict:
			if serverErr.BodyMessage != "" {
				return errors.Errorf("%s: %s", what, serverErr.BodyMessage)
			}
		}
	}
	return errors.Annotate(err, what)
}

func (c *Client) get(ctx context.Context, what, op string, params url.Values, resource string, args ...interface{}) (interface{}, error) {
	obj, err := c.object(ctx, resource, args...)
	if err != nil {
		return nil, err
	}
	logger.Tracef("GET %s op=%q %v", obj.URI(), op, params)
	result, err := obj.CallGet(op, params)
	if err != nil {
		return nil, callError(err, what)
	}
	return decode(result)
}

func (c *Client) post(ctx context.Context, what, op string, params url.Values, resource string, args ...interface{}) (interface{}, error) {
	obj, err := c.object(ctx, resource, args...)
	if err != nil {
		return nil, err
	}
	logger.Tracef("POST %s op=%q %v", obj.URI(), op, params)
	result, err := obj.CallPost(op, params)
	if err != nil {
		return nil, callError(err, what)
	}
	return decode(result)
}

func (c *Client) put(ctx context.Context, what string, params url.Values, resource string, args ...interface{}) error {
	obj, err := c.object(ctx, resource, args...)
	if err != nil {
		return err
	}
	logger.Tracef("PUT %s %v", obj.URI(), params)
	_, err = obj.Update(params)
	return callError(err, what)
}

func (c *Client) delete(ctx context.Context, what string, resource string, args ...interface{}) error {
	obj, err := c.object(ctx, resource, args...)
	if err != nil {
		return err
	}
	logger.Tracef("DELETE %s", obj.URI())
	return callError(obj.Delete(), what)
}

// Machine returns the machine with the given hostname.
func (c *Client) Machine(ctx context.Context, hostname string) (Machine, error) {
	params := url.Values{"hostname": {hostname}}
	source, err := c.get(ctx, "listing machines", "", params, "machines")
	if err != nil {
		return Machine{}, errors.Trace(err)
	}
	machines, err := readList("machine", source, readMachine)
	if err != nil {
		return Machine{}, errors.Trace(err)
	}
	// Older MAAS releases ignore unknown filters, so match explicitly.
	for _, machine := range machines {
		if machine.Hostname == hostname {
			return machine, nil
		}
	}
	return Machine{}, errors.NotFoundf("machine %q", hostname)
}

package lora

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

func (c *Client) ListActuators(ctx context.Context) ([]Actuator, error) {
	var out []Actuator
	if err := c.RequestJSON(ctx, "/actuadores", &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []Actuator{}
	}
	return out, nil
}

// Command posts one control action for a single actuator.
func (c *Client) Command(ctx context.Context, id string, action Action) error {
	ep := action.endpoint()
	if ep == "" {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	return c.RequestNoResponse(ctx, http.MethodPost, fmt.Sprintf("/actuadores/%s/%s", url.PathEscape(id), ep), nil)
}

func PowerOn(ctx context.Context, client *Client, id string) error {
	return client.Command(ctx, id, ActionPowerOn)
}

func PowerOff(ctx context.Context, client *Client, id string) error {
	return client.Command(ctx, id, ActionPowerOff)
}

func RestartGateway(ctx context.Context, client *Client, id string) error {
	return client.Command(ctx, id, ActionRestartGateway)
}

func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var out []Group
	if err := c.RequestJSON(ctx, "/grupos", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateGroup(ctx context.Context, g NewGroup) (Group, error) {
	var out Group
	err := c.do(ctx, http.MethodPost, "/grupos", g, &out)
	return out, err
}

func (c *Client) DeleteGroup(ctx context.Context, id string) error {
	return c.RequestNoResponse(ctx, http.MethodDelete, "/grupos/"+url.PathEscape(id), nil)
}

func (c *Client) ListSchedules(ctx context.Context) ([]Schedule, error) {
	var out []Schedule
	if err := c.RequestJSON(ctx, "/programacion-grupo", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateSchedule(ctx context.Context, s NewSchedule) (Schedule, error) {
	var out Schedule
	err := c.do(ctx, http.MethodPost, "/programacion-grupo", s, &out)
	return out, err
}

func (c *Client) SetScheduleActive(ctx context.Context, id string, active bool) error {
	return c.RequestNoResponse(ctx, http.MethodPatch, "/programacion-grupo/"+url.PathEscape(id), map[string]bool{"activo": active})
}

func (c *Client) DeleteSchedule(ctx context.Context, id string) error {
	return c.RequestNoResponse(ctx, http.MethodDelete, "/programacion-grupo/"+url.PathEscape(id), nil)
}

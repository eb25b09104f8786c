package adminshell

import (
	"context"
	"fmt"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// Convenience wrappers over the most common administrative commands
// (service-account and access-group bootstrap, per spec.md §1). Each
// formats a single shell command and interprets its Response; callers
// needing anything else should call Exec/ExecLong directly.

// HostExists reports whether host is a configured VirtualHost or Component.
func (p *Proxy) HostExists(ctx context.Context, host string) (bool, error) {
	resp, err := p.Exec(ctx, fmt.Sprintf(`> not not prosody.hosts["%s"]`, host))
	if err != nil {
		return false, err
	}
	return resp.Bool()
}

// UserExists reports whether a user account exists on host.
func (p *Proxy) UserExists(ctx context.Context, username, host string) (bool, error) {
	exists, err := p.HostExists(ctx, host)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, apierr.New(apierr.CodeNotFound, fmt.Sprintf("host %q does not exist", host))
	}

	resp, err := p.Exec(ctx, fmt.Sprintf(`> um.user_exists("%s", "%s")`, username, host))
	if err != nil {
		if apierr.Is(err, apierr.CodeShellError) {
			return false, nil
		}
		return false, err
	}
	return resp.Bool()
}

// UserCreate creates a user account, optionally assigning a primary role.
// It returns CodeConflict if the account already exists.
func (p *Proxy) UserCreate(ctx context.Context, jid, password, role string) error {
	command := fmt.Sprintf(`user:create("%s", "%s")`, jid, password)
	if role != "" {
		command = fmt.Sprintf(`user:create("%s", "%s", "%s")`, jid, password, role)
	}

	_, err := p.Exec(ctx, command)
	if apierr.Is(err, apierr.CodeShellError) {
		var shellErr *apierr.Error
		if e, ok := err.(*apierr.Error); ok {
			shellErr = e
		}
		if shellErr != nil && shellErr.Message == "User exists" {
			return apierr.New(apierr.CodeConflict, "user account already exists")
		}
	}
	return err
}

// UserSetRole sets the primary role of a user account on host.
func (p *Proxy) UserSetRole(ctx context.Context, jid, host, newRole string) error {
	command := fmt.Sprintf(`user:set_role("%s", "%s")`, jid, newRole)
	if host != "" {
		command = fmt.Sprintf(`user:set_role("%s", "%s", "%s")`, jid, host, newRole)
	}
	_, err := p.Exec(ctx, command)
	return err
}

// ModuleIsLoaded reports whether module is currently loaded for host.
func (p *Proxy) ModuleIsLoaded(ctx context.Context, host, module string) (bool, error) {
	if host != "*" {
		exists, err := p.HostExists(ctx, host)
		if err != nil {
			return false, err
		}
		if !exists {
			return false, apierr.New(apierr.CodeNotFound, fmt.Sprintf("host %q does not exist", host))
		}
	}

	resp, err := p.Exec(ctx, fmt.Sprintf(`> mm.is_loaded("%s", "%s")`, host, module))
	if err != nil {
		return false, err
	}
	return resp.Bool()
}

// ModuleLoad loads module for host.
func (p *Proxy) ModuleLoad(ctx context.Context, module, host string) error {
	command := fmt.Sprintf(`module:load("%s")`, module)
	if host != "" {
		command = fmt.Sprintf(`module:load("%s", "%s")`, module, host)
	}
	_, err := p.Exec(ctx, command)
	return err
}

// ModuleListEnabled lists the modules enabled for host.
func (p *Proxy) ModuleListEnabled(ctx context.Context, host string) ([]string, error) {
	exists, err := p.HostExists(ctx, host)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierr.New(apierr.CodeNotFound, fmt.Sprintf("host %q does not exist", host))
	}

	resp, err := p.ExecLong(ctx, fmt.Sprintf(`> dump(it.to_array(mm.get_modules_for_host("%s")))`, host))
	if err != nil {
		return nil, err
	}
	return resp.StringArray(), nil
}

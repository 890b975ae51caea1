package container

import (
	"github.com/ki1r0y/gallery/cmd/gallery/service"
	"github.com/ki1r0y/gallery/common/bootstrap"
	"github.com/ki1r0y/gallery/common/hotlist"
	"github.com/ki1r0y/gallery/common/identity"
	"github.com/ki1r0y/gallery/common/ratelimit"
)

// Container holds all initialized services (singleton pattern)
type Container struct {
	Components *bootstrap.Components

	Index   *identity.Index
	Hotlist *hotlist.List
	Limiter *ratelimit.Limiter

	Members      *service.MemberService
	Compositions *service.CompositionService
}

// NewContainer initializes all services once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	cfg := components.Config

	throttle := identity.Throttle{
		MaxRenames:  cfg.Naming.MaxRenames,
		MinInterval: cfg.Naming.MinRenameInterval,
	}
	index := identity.New(components.Store, throttle, components.Logger)
	hl := hotlist.New(components.Store, components.Cache, components.Logger)

	// The fixed-window limiter needs redis; with another store backend only
	// the admission pacing delay applies.
	var limiter *ratelimit.Limiter
	if components.Redis != nil {
		limiter = ratelimit.NewLimiter(components.Redis, components.Logger)
	}

	members := service.NewMemberService(
		components.Store,
		index,
		components.Blobs,
		cfg.Security.PasswordSecret,
		components.Logger,
	)
	compositions := service.NewCompositionService(
		components.Store,
		index,
		components.Blobs,
		hl,
		cfg.Score.HalfLife,
		components.Logger,
	)

	return &Container{
		Components:   components,
		Index:        index,
		Hotlist:      hl,
		Limiter:      limiter,
		Members:      members,
		Compositions: compositions,
	}, nil
}

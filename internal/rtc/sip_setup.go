package rtc

import (
	"context"
	"fmt"

	"github.com/livekit/protocol/livekit"
)

// SIPAdmin creates SIP trunks and dispatch rules on the media server.
type SIPAdmin interface {
	CreateSIPInboundTrunk(ctx context.Context, req *livekit.CreateSIPInboundTrunkRequest) (*livekit.SIPInboundTrunkInfo, error)
	CreateSIPDispatchRule(ctx context.Context, req *livekit.CreateSIPDispatchRuleRequest) (*livekit.SIPDispatchRuleInfo, error)
}

// TrunkSetup describes an inbound PBX trunk and the rule that routes each of
// its calls into a room of its own.
type TrunkSetup struct {
	TrunkName        string
	Numbers          []string
	AllowedAddresses []string
	RuleName         string
	RoomPrefix       string
}

// SIPSetupResult holds the IDs the media server assigned.
type SIPSetupResult struct {
	TrunkID string
	RuleID  string
}

// SetupSIP creates the inbound trunk and a per-call dispatch rule bound to it.
func SetupSIP(ctx context.Context, admin SIPAdmin, setup TrunkSetup) (*SIPSetupResult, error) {
	if len(setup.Numbers) == 0 {
		return nil, fmt.Errorf("trunk %q needs at least one number", setup.TrunkName)
	}
	if setup.RoomPrefix == "" {
		setup.RoomPrefix = DefaultSIPRoomPrefix
	}

	trunk, err := admin.CreateSIPInboundTrunk(ctx, &livekit.CreateSIPInboundTrunkRequest{
		Trunk: &livekit.SIPInboundTrunkInfo{
			Name:             setup.TrunkName,
			Numbers:          setup.Numbers,
			AllowedAddresses: setup.AllowedAddresses,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create trunk %q: %w", setup.TrunkName, err)
	}

	rule, err := admin.CreateSIPDispatchRule(ctx, &livekit.CreateSIPDispatchRuleRequest{
		Name:     setup.RuleName,
		TrunkIds: []string{trunk.GetSipTrunkId()},
		Rule: &livekit.SIPDispatchRule{
			Rule: &livekit.SIPDispatchRule_DispatchRuleIndividual{
				DispatchRuleIndividual: &livekit.SIPDispatchRuleIndividual{
					RoomPrefix: setup.RoomPrefix,
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create dispatch rule %q: %w", setup.RuleName, err)
	}

	return &SIPSetupResult{
		TrunkID: trunk.GetSipTrunkId(),
		RuleID:  rule.GetSipDispatchRuleId(),
	}, nil
}

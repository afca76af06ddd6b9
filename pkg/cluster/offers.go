package cluster

import (
	"fmt"
	"strconv"

	"github.com/skytix/rexe/pkg/types"
)

// defaultAgentPort is used when an offer's URL carries no explicit port,
// which should not happen against a conformant agent but is a cheap
// fallback rather than a fatal error.
const defaultAgentPort = 5051

// ParseOffers converts the offers of one OFFERS event into types.Offer
// values, in wire order.
func ParseOffers(event OffersEvent) []types.Offer {
	offers := make([]types.Offer, 0, len(event.Offers))
	for _, wo := range event.Offers {
		offers = append(offers, parseOffer(wo))
	}
	return offers
}

func parseOffer(wo WireOffer) types.Offer {
	o := types.Offer{
		OfferID:       wo.ID.Value,
		AgentID:       wo.AgentID.Value,
		AgentHostname: wo.Hostname,
		AgentScheme:   "http",
		AgentPort:     defaultAgentPort,
		Attributes:    map[string]string{},
	}

	if wo.URL != nil {
		if wo.URL.Scheme != "" {
			o.AgentScheme = wo.URL.Scheme
		}
		if wo.URL.Address.Hostname != "" {
			o.AgentHostname = wo.URL.Address.Hostname
		}
		if wo.URL.Address.Port != 0 {
			o.AgentPort = wo.URL.Address.Port
		}
	}

	for _, r := range wo.Resources {
		if r.Scalar == nil {
			continue
		}
		switch r.Name {
		case "cpus":
			o.CPUs = r.Scalar.Value
		case "gpus":
			o.GPUs = r.Scalar.Value
		case "mem":
			o.Mem = r.Scalar.Value
		case "disk":
			o.Disk = r.Scalar.Value
		}
	}

	for _, a := range wo.Attributes {
		switch {
		case a.Text != nil:
			o.Attributes[a.Name] = a.Text.Value
		case a.Scalar != nil:
			o.Attributes[a.Name] = strconv.FormatFloat(a.Scalar.Value, 'g', -1, 64)
		}
	}

	// The offer's own hostname is synthesized into the attribute map when
	// the agent didn't advertise one explicitly, so attribute predicates on
	// "hostname" always have something to match against (spec §3).
	if _, ok := o.Attributes["hostname"]; !ok {
		o.Attributes["hostname"] = o.AgentHostname
	}

	return o
}

// IsUsable reports whether offer satisfies every attribute predicate and
// scalar resource requirement of req (spec §6.4).
//
// Property P3 (monotonicity) follows directly from this being a set of
// independent >= comparisons plus predicates keyed only on offer.Attributes:
// any offer B that dominates a usable offer A on every scalar and carries
// the same attributes is usable too.
func IsUsable(offer types.Offer, req types.RequestedTaskInfo) bool {
	for _, pred := range req.Attrs {
		v, ok := offer.Attributes[pred.Name]
		if !pred.Matches(v, ok) {
			return false
		}
	}

	return offer.CPUs >= req.CPUs &&
		offer.GPUs >= req.GPUs &&
		offer.Disk >= req.DiskMiB &&
		offer.Mem >= req.MemMiB
}

// AgentBaseURL formats the base URL of the agent that made offer.
func AgentBaseURL(offer types.Offer) string {
	return fmt.Sprintf("%s://%s:%d", offer.AgentScheme, offer.AgentHostname, offer.AgentPort)
}

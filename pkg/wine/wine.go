// Package wine holds the tenant and wine context the conversation layer
// consumes. Catalog persistence and the admin surface live elsewhere; this
// package only models what a sommelier turn needs to know.
package wine

import (
	"fmt"
	"strings"
)

// Tenant is a winery with its chat persona.
type Tenant struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PersonaName string `json:"personaName,omitempty"`
	// PersonaStyle is a free-form description of tone and register,
	// e.g. "warm, unpretentious, avoids jargon".
	PersonaStyle string `json:"personaStyle,omitempty"`
}

// Wine is one catalog entry as the voice pipeline sees it.
type Wine struct {
	ID           string  `json:"id"`
	TenantID     string  `json:"tenantId,omitempty"`
	Name         string  `json:"name"`
	Vintage      int     `json:"vintage,omitempty"`
	Varietal     string  `json:"varietal,omitempty"`
	Region       string  `json:"region,omitempty"`
	TastingNotes string  `json:"tastingNotes,omitempty"`
	PairingNotes string  `json:"pairingNotes,omitempty"`
	Price        float64 `json:"price,omitempty"`
}

// Context is the wine context attached to a chat request: the wine the
// user is currently looking at plus neighboring catalog entries the
// persona may reference.
type Context struct {
	Tenant  *Tenant `json:"tenant,omitempty"`
	Current *Wine   `json:"current,omitempty"`
	Catalog []Wine  `json:"catalog,omitempty"`
}

// Label returns a display label for a wine, e.g. "2019 Willamette Pinot Noir".
func (w *Wine) Label() string {
	if w.Vintage > 0 {
		return fmt.Sprintf("%d %s", w.Vintage, w.Name)
	}
	return w.Name
}

// PromptFragment renders the context as plain text for inclusion in the
// system prompt. Empty contexts render empty.
func (c *Context) PromptFragment() string {
	if c == nil {
		return ""
	}

	var b strings.Builder

	if c.Tenant != nil {
		fmt.Fprintf(&b, "You represent %s.", c.Tenant.Name)
		if c.Tenant.PersonaName != "" {
			fmt.Fprintf(&b, " Your name is %s.", c.Tenant.PersonaName)
		}
		if c.Tenant.PersonaStyle != "" {
			fmt.Fprintf(&b, " Speaking style: %s.", c.Tenant.PersonaStyle)
		}
		b.WriteString("\n")
	}

	if c.Current != nil {
		fmt.Fprintf(&b, "The guest is looking at: %s", c.Current.Label())
		if c.Current.Varietal != "" {
			fmt.Fprintf(&b, " (%s", c.Current.Varietal)
			if c.Current.Region != "" {
				fmt.Fprintf(&b, ", %s", c.Current.Region)
			}
			b.WriteString(")")
		}
		b.WriteString(".\n")
		if c.Current.TastingNotes != "" {
			fmt.Fprintf(&b, "Tasting notes: %s\n", c.Current.TastingNotes)
		}
		if c.Current.PairingNotes != "" {
			fmt.Fprintf(&b, "Pairings: %s\n", c.Current.PairingNotes)
		}
	}

	if len(c.Catalog) > 0 {
		b.WriteString("Other wines available:\n")
		for _, w := range c.Catalog {
			fmt.Fprintf(&b, "- %s", w.Label())
			if w.Varietal != "" {
				fmt.Fprintf(&b, " (%s)", w.Varietal)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/jose-valero/verification-bot/internal/app/service"
	"github.com/jose-valero/verification-bot/internal/domain"
)

var buttonStyles = map[service.ActionStyle]discordgo.ButtonStyle{
	service.StylePrimary: discordgo.PrimaryButton,
	service.StyleSuccess: discordgo.SuccessButton,
	service.StyleDanger:  discordgo.DangerButton,
}

func embedFor(c service.Card) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       c.Title,
		Description: c.Description,
		Color:       c.Color,
	}
	for _, f := range c.Fields {
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if !c.Timestamp.IsZero() {
		e.Timestamp = c.Timestamp.UTC().Format(time.RFC3339)
	}
	return e
}

// componentsFor always returns a non-nil slice: an edit with an empty slice
// is what removes the buttons from a message.
func componentsFor(c service.Card) []discordgo.MessageComponent {
	if len(c.Actions) == 0 {
		return []discordgo.MessageComponent{}
	}
	btns := make([]discordgo.MessageComponent, 0, len(c.Actions))
	for _, a := range c.Actions {
		b := discordgo.Button{
			Label:    a.Label,
			Style:    buttonStyles[a.Style],
			CustomID: a.ID,
		}
		if a.Emoji != "" {
			b.Emoji = &discordgo.ComponentEmoji{Name: a.Emoji}
		}
		btns = append(btns, b)
	}
	return []discordgo.MessageComponent{discordgo.ActionsRow{Components: btns}}
}

func messageFor(c service.Card) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embedFor(c)},
		Components: componentsFor(c),
	}
}

func editFor(ref domain.CardRef, c service.Card) *discordgo.MessageEdit {
	embeds := []*discordgo.MessageEmbed{embedFor(c)}
	comps := componentsFor(c)
	return &discordgo.MessageEdit{
		Channel:    ref.ChannelID,
		ID:         ref.MessageID,
		Embeds:     &embeds,
		Components: &comps,
	}
}

func modalFor(f service.FormSpec) *discordgo.InteractionResponse {
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: f.ID,
			Title:    f.Title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID:    f.FieldID,
							Label:       f.Label,
							Style:       discordgo.TextInputParagraph,
							Placeholder: f.Placeholder,
							Required:    true,
							MinLength:   f.MinLength,
							MaxLength:   f.MaxLength,
						},
					},
				},
			},
		},
	}
}

// textInputValue digs the value of input fieldID out of a submitted modal.
func textInputValue(data discordgo.ModalSubmitInteractionData, fieldID string) string {
	for _, c := range data.Components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			if in, ok := inner.(*discordgo.TextInput); ok && in.CustomID == fieldID {
				return in.Value
			}
		}
	}
	return ""
}

package handler

import "grandexchange-api/pkg/validate"

var (
	sellOfferSchema = validate.MustCompile("sell_offer.schema.json", `{
		"type": "object",
		"required": ["item_string_id", "quantity", "price_per_item"],
		"properties": {
			"slot_index": {"type": "integer", "minimum": 0},
			"item_string_id": {"type": "string", "minLength": 1, "maxLength": 128},
			"quantity": {"type": "integer", "minimum": 1},
			"price_per_item": {"type": "integer", "minimum": 1},
			"duration_hours": {"type": "integer", "minimum": 0}
		}
	}`)

	buyOrderSchema = validate.MustCompile("buy_order.schema.json", `{
		"type": "object",
		"properties": {
			"slot_index": {"type": "integer", "minimum": 0}
		}
	}`)

	buyTermsSchema = validate.MustCompile("buy_terms.schema.json", `{
		"type": "object",
		"required": ["item_string_id", "quantity", "price_per_item"],
		"properties": {
			"item_string_id": {"type": "string", "minLength": 1, "maxLength": 128},
			"quantity": {"type": "integer", "minimum": 1},
			"price_per_item": {"type": "integer", "minimum": 1},
			"duration_days": {"type": "integer", "minimum": 0}
		}
	}`)

	claimSchema = validate.MustCompile("claim.schema.json", `{
		"type": "object",
		"required": ["index"],
		"properties": {
			"index": {"type": "integer", "minimum": 0}
		}
	}`)

	collectionAddSchema = validate.MustCompile("collection_add.schema.json", `{
		"type": "object",
		"required": ["item_string_id", "quantity"],
		"properties": {
			"item_string_id": {"type": "string", "minLength": 1, "maxLength": 128},
			"quantity": {"type": "integer", "minimum": 1},
			"source": {"enum": ["purchase", "sale_proceeds", "expired_offer", "cancelled_offer", "refund", "unknown"]}
		}
	}`)

	bankTransferSchema = validate.MustCompile("bank_transfer.schema.json", `{
		"type": "object",
		"required": ["item_string_id", "quantity"],
		"properties": {
			"item_string_id": {"type": "string", "minLength": 1, "maxLength": 128},
			"quantity": {"type": "integer", "minimum": 1}
		}
	}`)

	ackSchema = validate.MustCompile("history_ack.schema.json", `{
		"type": "object",
		"required": ["timestamp"],
		"properties": {
			"timestamp": {"type": "integer", "minimum": 0}
		}
	}`)

	tokenSchema = validate.MustCompile("token.schema.json", `{
		"type": "object",
		"required": ["player_id"],
		"properties": {
			"player_id": {"type": "integer", "minimum": 1},
			"player_name": {"type": "string", "maxLength": 64}
		}
	}`)
)

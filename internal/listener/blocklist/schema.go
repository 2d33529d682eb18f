package blocklist

// rulesSchema is the JSON Schema the rule file must satisfy. Selector
// completeness (host or cidr present) is checked in Parse, since it is
// awkward to express here.
const rulesSchema = `{
  "type": "object",
  "properties": {
    "version": { "type": "string", "minLength": 1 },
    "default": { "enum": ["allow", "deny"] },
    "rules": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "host": { "type": "string" },
          "cidr": { "type": "string" },
          "intents": {
            "type": "array",
            "items": { "enum": ["login", "status", "transfer"] }
          },
          "action": { "enum": ["allow", "deny"] },
          "reason": { "type": "string" }
        },
        "required": ["action"]
      }
    }
  },
  "required": ["version", "default"]
}`

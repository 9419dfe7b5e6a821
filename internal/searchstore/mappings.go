package searchstore

// Index mappings for the two collections. Creation is destructive by
// default: the old index is dropped and the schema reapplied. Callers that
// need to preserve data must go through the offline reindex path instead.

const chunksMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 0},
  "mappings": {
    "properties": {
      "global_id":   {"type": "keyword"},
      "doc_id":      {"type": "keyword"},
      "doc_name":    {"type": "keyword"},
      "chunk_id":    {"type": "integer"},
      "path":        {"type": "keyword"},
      "parent_path": {"type": "keyword"},
      "content": {
        "type": "text",
        "fields": {"keyword": {"type": "keyword", "ignore_above": 512}}
      },
      "type":         {"type": "keyword"},
      "source_pages": {"type": "integer"},
      "page_range": {
        "properties": {"first": {"type": "integer"}, "last": {"type": "integer"}}
      },
      "bbox_range": {
        "properties": {
          "left":   {"type": "float"},
          "top":    {"type": "float"},
          "right":  {"type": "float"},
          "bottom": {"type": "float"}
        }
      },
      "confidence_avg": {"type": "float"},
      "node_count":     {"type": "integer"},
      "created_at":     {"type": "date"}
    }
  }
}`

const sectionsMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 0},
  "mappings": {
    "properties": {
      "global_id":  {"type": "keyword"},
      "doc_id":     {"type": "keyword"},
      "doc_name":   {"type": "keyword"},
      "section_id": {"type": "integer"},
      "path":       {"type": "keyword"},
      "heading": {
        "type": "text",
        "fields": {"keyword": {"type": "keyword", "ignore_above": 512}}
      },
      "content": {
        "type": "text",
        "fields": {"keyword": {"type": "keyword", "ignore_above": 512}}
      },
      "source_pages": {"type": "integer"},
      "page_range": {
        "properties": {"first": {"type": "integer"}, "last": {"type": "integer"}}
      },
      "chunk_count":       {"type": "integer"},
      "chunk_types":       {"type": "object", "enabled": false},
      "heading_chunk_id":  {"type": "integer"},
      "content_chunk_ids": {"type": "integer"},
      "created_at":        {"type": "date"}
    }
  }
}`

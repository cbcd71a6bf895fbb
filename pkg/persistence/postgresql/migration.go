package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE canvas_workflows (
				id VARCHAR(128) PRIMARY KEY,
				document JSONB NOT NULL,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);

			CREATE INDEX idx_canvas_workflows_updated_at ON canvas_workflows(updated_at);
		`,
		2: `
			-- Node and connection counts are kept next to the document for cheap listings
			ALTER TABLE canvas_workflows
				ADD COLUMN node_count INT NOT NULL DEFAULT 0,
				ADD COLUMN connection_count INT NOT NULL DEFAULT 0;
		`,
	}
}
